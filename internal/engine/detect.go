package engine

import (
	"context"
	"fmt"
)

// Supported providers.
const (
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// DetectConfig selects and configures a backend.
type DetectConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
}

// Detect returns the Engine for the configured provider. An empty provider
// selects a local Ollama.
func Detect(ctx context.Context, cfg DetectConfig) (Engine, error) {
	switch cfg.Provider {
	case "", ProviderOllama:
		return NewOllamaEngine(cfg.BaseURL), nil
	case ProviderOpenRouter:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires oracle.api_key", cfg.Provider)
		}
		return NewOpenAIEngine(cfg.BaseURL, cfg.APIKey), nil
	case ProviderGemini:
		return NewGeminiEngine(ctx, cfg.APIKey)
	}
	return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
}
