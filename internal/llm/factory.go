// Package llm - Provider factory
package llm

import "fmt"

// New creates a provider instance from config, dispatching on
// cfg.Provider.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
