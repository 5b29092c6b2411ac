// Package factory constructs llm.Client instances from configuration.
// It lives beside the provider implementations so the llm package itself
// stays free of SDK imports.
package factory

import (
	"fmt"

	"nutracoach/pkg/config"
	"nutracoach/pkg/llm"
	"nutracoach/pkg/llm/internal/anthropic"
	"nutracoach/pkg/llm/internal/google"
	"nutracoach/pkg/llm/internal/ollama"
	"nutracoach/pkg/llm/internal/openai"
)

// NewClient creates a raw provider client from configuration.
func NewClient(cfg *config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewClient(cfg.APIKey, cfg.Model), nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.APIKey, cfg.Model), nil
	case config.ProviderOllama:
		return ollama.NewClient(cfg.OllamaHost, cfg.Model), nil
	case config.ProviderGoogle:
		return google.NewClient(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}
