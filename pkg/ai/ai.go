package ai

import "context"

// GenerateOptions holds configuration for a single generation request.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	Thinking      string   // Reasoning effort, empty to disable
}

// ModelMetrics accumulates token usage and time spent in model calls.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// Add merges m into the receiver and refreshes the throughput figure.
func (a *ModelMetrics) Add(m ModelMetrics) {
	a.InputTokens += m.InputTokens
	a.OutputTokens += m.OutputTokens
	a.TotalTokens += m.TotalTokens
	a.DurationMs += m.DurationMs
	if a.DurationMs > 0 {
		a.TokenPerSecond = float32(float64(a.TotalTokens) * 1000.0 / float64(a.DurationMs))
	}
}

// GenerateOption is a functional option for generation requests.
type GenerateOption func(*GenerateOptions)

func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature sets the sampling temperature. Lower values make output
// more deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

func WithThinking(thinking string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Thinking = thinking
	}
}

// ApplyOptions returns defaults overridden by opts.
func ApplyOptions(defaults GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, o := range opts {
		if o != nil {
			o(&defaults)
		}
	}
	return defaults
}

// GraphAIClient is the model client used by knowledge-graph extraction.
type GraphAIClient interface {
	GenerateCompletion(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error

	ResetMetrics()
	GetMetrics() ModelMetrics
}
