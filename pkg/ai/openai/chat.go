package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

var errNoClient = errors.New("openai client is not configured (missing api key)")

func buildMessages(systemPrompts []string, prompt string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(systemPrompts)+1)
	for _, sp := range systemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	return append(msgs, openai.UserMessage(prompt))
}

func (c *GraphOpenAIClient) applyThinking(body *openai.ChatCompletionNewParams, thinking string) {
	if thinking == "" {
		return
	}
	// Reasoning models on api.openai.com only accept the default temperature.
	if c.chatURL == "" {
		body.Temperature = openai.Float(1.0)
	}
	body.ReasoningEffort = shared.ReasoningEffort(thinking)
}

func (c *GraphOpenAIClient) complete(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if c.ChatClient == nil {
		return nil, errNoClient
	}
	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, err
	}
	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   time.Since(start).Milliseconds(),
	})
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response from model")
	}
	return response, nil
}

// GenerateCompletion sends a single-turn prompt and returns the reply text.
func (c *GraphOpenAIClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{Model: c.descriptionModel, Temperature: 0.3}, opts...)

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    buildMessages(options.SystemPrompts, prompt),
		Temperature: openai.Float(options.Temperature),
	}
	c.applyThinking(&body, options.Thinking)

	response, err := c.complete(ctx, body)
	if err != nil {
		return "", err
	}
	return response.Choices[0].Message.Content, nil
}

// GenerateCompletionWithFormat requests JSON output matching the schema of
// out and decodes the reply into it.
//
// Example:
//
//	var res extractResponse
//	err := client.GenerateCompletionWithFormat(ctx, "extract", "Extract entities", text, &res)
func (c *GraphOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(ai.GenerateOptions{Model: c.extractionModel, Temperature: 0.1}, opts...)

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(options.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        name,
					Description: openai.String(description),
					Schema:      ai.GenerateSchema(out),
					Strict:      openai.Bool(true),
				},
			},
		},
		Messages:    buildMessages(options.SystemPrompts, prompt),
		Temperature: openai.Float(options.Temperature),
	}
	c.applyThinking(&body, options.Thinking)

	response, err := c.complete(ctx, body)
	if err != nil {
		return err
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return ai.UnmarshalFlexible(message, out)
}
