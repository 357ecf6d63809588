package ai

import (
	"context"
)

// GenerateOptions holds configuration for generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier, empty selects the adapter default
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	Advanced      bool     // Route to the higher-capability model variant
}

// ModelMetrics contains accumulated token usage and timing from model calls.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// GenerateOption is a functional option for configuring generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
// Higher values (e.g., 1.0) produce more random outputs, while lower values
// (e.g., 0.2) make outputs more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithAdvanced returns a GenerateOption that routes the request to the
// adapter's higher-capability model. Used for person detail, location
// detail, and profile synthesis calls.
func WithAdvanced() GenerateOption {
	return func(o *GenerateOptions) {
		o.Advanced = true
	}
}

// Client is the generation-service interface used by extraction and
// aggregation. Replies from GenerateCompletion are untrusted free text;
// callers run them through the recovery engine. GenerateCompletionWithFormat
// enforces a JSON schema derived from the output type.
type Client interface {
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
