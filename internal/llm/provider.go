// Package llm provides unified LLM provider interfaces and
// implementations. The agent loop only ever sees Decide: one round trip
// that either picks tools or produces text.
package llm

import (
	"context"

	"github.com/fixxit/fixxit/internal/types"
)

// Provider is the unified interface for all LLM backends.
// Implementations: OpenAIProvider, AnthropicProvider.
type Provider interface {
	// Name returns the provider type (e.g., "openai").
	Name() string

	// Model returns the current model name.
	Model() string

	// Decide runs one decision round: given the system instructions, the
	// accumulated context and the enabled tool schemas, the model either
	// selects one or more tools or answers in plain text.
	Decide(ctx context.Context, systemPrompt string, messages []types.Message, tools []types.FunctionSchema) (*Decision, error)
}

// Decision is the outcome of one model round trip.
type Decision struct {
	// Text is the plain-text answer; meaningful when no tools were
	// selected (treated as an implicit final answer).
	Text string

	// ToolCalls holds the selected tools in the order the model emitted
	// them.
	ToolCalls []types.ToolCall

	InputTokens  int
	OutputTokens int
}

// HasToolCalls reports whether the model selected any tool.
func (d *Decision) HasToolCalls() bool {
	return len(d.ToolCalls) > 0
}

// Config is the configuration for a provider instance.
type Config struct {
	Provider       string  `json:"provider"` // "openai" or "anthropic"
	Model          string  `json:"model"`
	APIKey         string  `json:"apiKey"`
	BaseURL        string  `json:"baseURL"` // for OpenAI-compatible endpoints
	MaxTokens      int     `json:"maxTokens"`
	Temperature    float32 `json:"temperature"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
}
