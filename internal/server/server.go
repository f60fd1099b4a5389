package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/brightfield-ai/scout/internal/analysis"
	"github.com/brightfield-ai/scout/internal/ratelimit"
	"github.com/brightfield-ai/scout/internal/session"
	"github.com/brightfield-ai/scout/internal/storage"
)

// Server is the Scout HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): DB, Searcher, Limiter, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Svc      *analysis.Service
	Sessions *session.Store
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	DB        *storage.DB
	Searcher  HealthChecker
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Svc:                 cfg.Svc,
		Sessions:            cfg.Sessions,
		DB:                  cfg.DB,
		Searcher:            cfg.Searcher,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	rl := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Analysis pipeline (rate limited — each call is an LLM round trip).
	mux.Handle("POST /v1/analyze", rl(http.HandlerFunc(h.HandleAnalyze)))
	mux.Handle("POST /v1/modules/generate", rl(http.HandlerFunc(h.HandleGenerateModule)))

	// Session and catalog reads (cheap, no rate limit).
	mux.HandleFunc("GET /v1/sessions/{session_id}", h.HandleGetSession)
	mux.HandleFunc("GET /v1/agents", h.HandleListAgents)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
