package llm

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docintel/internal/config"
)

// New returns the provider selected by cfg.Provider. Outgoing calls are traced through otelhttp
// and bounded by cfg.TimeoutSec.
func New(cfg config.LLMConfig) (Provider, error) {
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
	}

	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY is required for provider anthropic")
		}
		return NewAnthropicProvider(cfg.AnthropicKey, httpClient, cfg.MaxTokens), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("llm: OPENAI_API_KEY is required for provider openai")
		}
		return NewOpenAIProvider(cfg.OpenAIKey, httpClient, cfg.MaxTokens, ""), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
