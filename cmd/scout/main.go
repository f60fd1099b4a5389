package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brightfield-ai/scout/internal/analysis"
	"github.com/brightfield-ai/scout/internal/config"
	"github.com/brightfield-ai/scout/internal/embed"
	"github.com/brightfield-ai/scout/internal/index"
	"github.com/brightfield-ai/scout/internal/llm"
	"github.com/brightfield-ai/scout/internal/mcp"
	"github.com/brightfield-ai/scout/internal/ratelimit"
	"github.com/brightfield-ai/scout/internal/segment"
	"github.com/brightfield-ai/scout/internal/server"
	"github.com/brightfield-ai/scout/internal/session"
	"github.com/brightfield-ai/scout/internal/storage"
	"github.com/brightfield-ai/scout/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("SCOUT_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("scout starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Open session persistence.
	db, err := storage.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Drop sessions past the cache TTL; anything older would be evicted
	// from the cache anyway, so recovery can never need it.
	if n, err := db.DeleteExpired(ctx, time.Now().Add(-cfg.SessionTTL)); err != nil {
		logger.Warn("session cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("expired sessions removed", "count", n)
	}

	// Create embedding provider.
	embedder, err := embed.New(embed.Config{
		Provider:    cfg.EmbeddingProvider,
		OpenAIKey:   cfg.OpenAIAPIKey,
		Model:       cfg.EmbeddingModel,
		Dimensions:  cfg.EmbeddingDimensions,
		OllamaURL:   cfg.OllamaURL,
		OllamaModel: cfg.OllamaModel,
	})
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	logger.Info("embedding provider ready", "provider", cfg.EmbeddingProvider, "dimensions", cfg.EmbeddingDimensions)

	// Select the index backend (optional Qdrant — in-memory if QDRANT_URL is empty).
	var builder index.Builder
	var searcher server.HealthChecker
	if cfg.QdrantURL != "" {
		qdrantStore, err := index.NewQdrantStore(index.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dims:       uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
		}, embedder, logger)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		defer func() { _ = qdrantStore.Close() }()

		if err := qdrantStore.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("qdrant ensure collection: %w", err)
		}

		builder = qdrantStore
		searcher = qdrantStore
		logger.Info("index: qdrant", "collection", cfg.QdrantCollection)
	} else {
		builder = index.NewMemoryBuilder(embedder)
		logger.Info("index: in-memory (no QDRANT_URL)")
	}

	// Create the classifier client.
	classifier, err := llm.New(llm.Config{
		Provider:  cfg.ClassifierProvider,
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.ClassifierModel,
		OllamaURL: cfg.OllamaURL,
		MaxTokens: cfg.ClassifierMaxToks,
	})
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	sanitizer, err := analysis.NewSanitizer()
	if err != nil {
		return fmt.Errorf("sanitizer: %w", err)
	}

	splitter, err := segment.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("segmenter: %w", err)
	}

	sessions := session.New(cfg.SessionCapacity, cfg.SessionTTL)

	// Create the analysis service (shared by HTTP and MCP handlers).
	svc := analysis.NewService(splitter, builder, classifier, sanitizer, sessions, db, analysis.Config{
		SearchK: cfg.SearchK,
		Quotas: index.Quotas{
			Transcript:     cfg.TranscriptQuota,
			AgentReference: cfg.AgentRefQuota,
			CompanyInfo:    cfg.CompanyQuota,
		},
		ClassifierTimeout: cfg.ClassifierTimeout,
		MaxTokens:         cfg.ClassifierMaxToks,
		Guardrails:        analysis.DefaultGuardrailConfig(),
	}, logger)

	// Create MCP server.
	mcpSrv := mcp.New(svc, version, logger)

	// Create rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		memLimiter := ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = memLimiter.Close() }()
		limiter = memLimiter
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Create and start HTTP server (MCP mounted at /mcp).
	srv := server.New(server.ServerConfig{
		Svc:                 svc,
		Sessions:            sessions,
		DB:                  db,
		Searcher:            searcher,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("scout shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	return nil
}
