// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64

	// Persistence settings. DatabasePath is the embedded SQLite file used
	// to recover sessions across restarts; ":memory:" keeps everything
	// process-local.
	DatabasePath string

	// Embedding provider settings.
	EmbeddingProvider   string // "auto", "openai", "ollama", or "local"
	OpenAIAPIKey        string
	EmbeddingModel      string
	EmbeddingDimensions int // Vector dimensions; must match the chosen model's output.
	OllamaURL           string
	OllamaModel         string

	// Classifier (LLM) settings.
	ClassifierProvider string // "openai" or "ollama"
	ClassifierModel    string
	ClassifierTimeout  time.Duration
	ClassifierMaxToks  int

	// Qdrant settings. Empty URL selects the in-memory index.
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Segmenter settings.
	ChunkSize    int
	ChunkOverlap int

	// Retrieval settings.
	SearchK         int // candidates fetched from the index before quota partitioning
	TranscriptQuota int
	AgentRefQuota   int
	CompanyQuota    int

	// Session cache settings.
	SessionCapacity int
	SessionTTL      time.Duration

	// Rate limit settings (requests per second / burst, per client IP).
	RateLimitRPS   float64
	RateLimitBurst int

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("SCOUT_PORT", 8080),
		ReadTimeout:         envDuration("SCOUT_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("SCOUT_WRITE_TIMEOUT", 180*time.Second),
		MaxRequestBodyBytes: int64(envInt("SCOUT_MAX_REQUEST_BODY_BYTES", 8*1024*1024)), // 8 MB: documents arrive inline
		DatabasePath:        envStr("SCOUT_DATABASE_PATH", "scout.db"),
		EmbeddingProvider:   envStr("SCOUT_EMBEDDING_PROVIDER", "auto"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		EmbeddingModel:      envStr("SCOUT_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt("SCOUT_EMBEDDING_DIMENSIONS", 1024),
		OllamaURL:           envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:         envStr("OLLAMA_EMBED_MODEL", "mxbai-embed-large"),
		ClassifierProvider:  envStr("SCOUT_CLASSIFIER_PROVIDER", "openai"),
		ClassifierModel:     envStr("SCOUT_CLASSIFIER_MODEL", "gpt-4o"),
		ClassifierTimeout:   envDuration("SCOUT_CLASSIFIER_TIMEOUT", 120*time.Second),
		ClassifierMaxToks:   envInt("SCOUT_CLASSIFIER_MAX_TOKENS", 3000),
		QdrantURL:           envStr("QDRANT_URL", ""),
		QdrantAPIKey:        envStr("QDRANT_API_KEY", ""),
		QdrantCollection:    envStr("SCOUT_QDRANT_COLLECTION", "scout_segments"),
		ChunkSize:           envInt("SCOUT_CHUNK_SIZE", 500),
		ChunkOverlap:        envInt("SCOUT_CHUNK_OVERLAP", 50),
		SearchK:             envInt("SCOUT_SEARCH_K", 80),
		TranscriptQuota:     envInt("SCOUT_TRANSCRIPT_QUOTA", 30),
		AgentRefQuota:       envInt("SCOUT_AGENT_REF_QUOTA", 10),
		CompanyQuota:        envInt("SCOUT_COMPANY_QUOTA", 5),
		SessionCapacity:     envInt("SCOUT_SESSION_CAPACITY", 256),
		SessionTTL:          envDuration("SCOUT_SESSION_TTL", 24*time.Hour),
		RateLimitRPS:        envFloat("SCOUT_RATE_LIMIT_RPS", 5),
		RateLimitBurst:      envInt("SCOUT_RATE_LIMIT_BURST", 10),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "scout"),
		LogLevel:            envStr("SCOUT_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config: SCOUT_CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: SCOUT_CHUNK_OVERLAP must be in [0, chunk size)")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config: SCOUT_EMBEDDING_DIMENSIONS must be positive")
	}
	if c.SearchK <= 0 {
		return fmt.Errorf("config: SCOUT_SEARCH_K must be positive")
	}
	if c.TranscriptQuota < 0 || c.AgentRefQuota < 0 || c.CompanyQuota < 0 {
		return fmt.Errorf("config: retrieval quotas must be non-negative")
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("config: SCOUT_SESSION_CAPACITY must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: SCOUT_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("config: SCOUT_CLASSIFIER_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
