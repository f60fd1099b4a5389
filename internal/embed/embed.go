// Package embed provides vector embedding generation for semantic retrieval.
//
// Defines a Provider interface with three implementations: OpenAI, a local
// Ollama server, and a dependency-free hashing projection used when neither
// is configured. The interface allows swapping providers without changing
// consumers.
package embed

import (
	"context"
	"fmt"
)

// Provider generates vector embeddings from text.
type Provider interface {
	// Embed generates a single embedding vector from text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimensionality.
	Dimensions() int
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider   string // "auto", "openai", "ollama", or "local"
	OpenAIKey  string
	Model      string // embedding model name for openai/ollama
	Dimensions int
	OllamaURL  string
	OllamaModel string
}

// New builds a Provider from config. "auto" prefers OpenAI when an API key
// is present, then Ollama, then the local hashing provider.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("embed: openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.Model, cfg.Dimensions), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions), nil
	case "local":
		return NewLocalProvider(cfg.Dimensions), nil
	case "auto", "":
		if cfg.OpenAIKey != "" {
			return NewOpenAIProvider(cfg.OpenAIKey, cfg.Model, cfg.Dimensions), nil
		}
		if cfg.OllamaURL != "" {
			return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions), nil
		}
		return NewLocalProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}
