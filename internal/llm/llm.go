// Package llm wraps the generative model used for classification and
// module generation. The model is an external collaborator: it receives a
// composed prompt and returns raw text that the caller treats as opaque
// and untrusted until parsed and sanitized.
package llm

import (
	"context"
	"fmt"
)

// GenerationParams tunes a single generation call. Nil fields use the
// backend default.
type GenerationParams struct {
	Temperature *float32
	MaxTokens   *int
	Stop        []string
}

// Client is the interface for any generative backend.
// Implementations must be safe for concurrent use.
type Client interface {
	// Generate produces raw text for the prompt. Cancellation and
	// deadlines come from ctx; implementations must honor both.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Provider  string // "openai" or "ollama"
	APIKey    string
	Model     string
	OllamaURL string
	MaxTokens int
}

// New builds a Client from config.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.Model), nil
	case "ollama":
		return NewOllamaClient(cfg.OllamaURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
