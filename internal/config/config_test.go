package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Clear anything the host environment might set.
	for _, key := range []string{
		"SCOUT_PORT", "SCOUT_CHUNK_SIZE", "SCOUT_CHUNK_OVERLAP",
		"SCOUT_SEARCH_K", "SCOUT_CLASSIFIER_MODEL", "SCOUT_SESSION_TTL",
		"QDRANT_URL", "OPENAI_API_KEY", "SCOUT_DATABASE_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 180*time.Second, cfg.WriteTimeout)
	assert.Equal(t, int64(8*1024*1024), cfg.MaxRequestBodyBytes)
	assert.Equal(t, "scout.db", cfg.DatabasePath)
	assert.Equal(t, "gpt-4o", cfg.ClassifierModel)
	assert.Equal(t, 120*time.Second, cfg.ClassifierTimeout)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 80, cfg.SearchK)
	assert.Equal(t, 30, cfg.TranscriptQuota)
	assert.Equal(t, 10, cfg.AgentRefQuota)
	assert.Equal(t, 5, cfg.CompanyQuota)
	assert.Equal(t, 256, cfg.SessionCapacity)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Empty(t, cfg.QdrantURL, "in-memory index is the default")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCOUT_PORT", "9090")
	t.Setenv("SCOUT_CHUNK_SIZE", "300")
	t.Setenv("SCOUT_CHUNK_OVERLAP", "25")
	t.Setenv("SCOUT_SESSION_TTL", "2h")
	t.Setenv("SCOUT_RATE_LIMIT_RPS", "2.5")
	t.Setenv("QDRANT_URL", "http://localhost:6333")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, 25, cfg.ChunkOverlap)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, "http://localhost:6333", cfg.QdrantURL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SCOUT_PORT", "not-a-number")
	t.Setenv("SCOUT_SESSION_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port, "malformed int falls back to default")
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL, "malformed duration falls back to default")
}

func TestValidate(t *testing.T) {
	valid := Config{
		ChunkSize:           500,
		ChunkOverlap:        50,
		EmbeddingDimensions: 1024,
		SearchK:             80,
		TranscriptQuota:     30,
		AgentRefQuota:       10,
		CompanyQuota:        5,
		SessionCapacity:     256,
		MaxRequestBodyBytes: 1024,
		ClassifierTimeout:   time.Minute,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"overlap equals chunk size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }},
		{"zero search k", func(c *Config) { c.SearchK = 0 }},
		{"negative quota", func(c *Config) { c.TranscriptQuota = -1 }},
		{"zero session capacity", func(c *Config) { c.SessionCapacity = 0 }},
		{"zero body limit", func(c *Config) { c.MaxRequestBodyBytes = 0 }},
		{"zero classifier timeout", func(c *Config) { c.ClassifierTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
