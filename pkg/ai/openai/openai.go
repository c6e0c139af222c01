package openai

import (
	"sync"

	"github.com/OFFIS-RIT/kgops/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GraphOpenAIClient implements ai.GraphAIClient against the OpenAI chat
// completions API or any compatible endpoint.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	descriptionModel string
	extractionModel  string

	chatURL string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams configures a GraphOpenAIClient.
//
// ChatURL may be empty to use api.openai.com. ExtractionModel is used for
// structured output, DescriptionModel for free text.
type NewGraphOpenAIClientParams struct {
	DescriptionModel string
	ExtractionModel  string

	ChatURL string
	ChatKey string
}

// NewGraphOpenAIClient creates a client for knowledge-graph extraction.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		DescriptionModel: "gpt-4o-mini",
//		ExtractionModel:  "gpt-4o-mini",
//		ChatKey:          os.Getenv("AI_CHAT_KEY"),
//	})
func NewGraphOpenAIClient(params NewGraphOpenAIClientParams) *GraphOpenAIClient {
	extractionModel := params.ExtractionModel
	if extractionModel == "" {
		extractionModel = params.DescriptionModel
	}
	return &GraphOpenAIClient{
		descriptionModel: params.DescriptionModel,
		extractionModel:  extractionModel,
		chatURL:          params.ChatURL,
		ChatClient:       newOpenaiClient(params.ChatURL, params.ChatKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)
	return &client
}

// ResetMetrics clears the accumulated token and timing metrics.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the metrics accumulated since the last reset.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *GraphOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	c.metrics.Add(m)
	c.metricsLock.Unlock()
}
