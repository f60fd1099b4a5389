package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brightfield-ai/scout/internal/analysis"
	"github.com/brightfield-ai/scout/internal/catalog"
	"github.com/brightfield-ai/scout/internal/index"
	"github.com/brightfield-ai/scout/internal/model"
	"github.com/brightfield-ai/scout/internal/session"
	"github.com/brightfield-ai/scout/internal/storage"
)

// HealthChecker reports backend reachability. The Qdrant store implements
// it; the in-memory index has nothing to check.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	svc                 *analysis.Service
	sessions            *session.Store
	db                  *storage.DB    // nil when persistence is disabled
	searcher            HealthChecker  // nil when the in-memory index is used
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): DB, Searcher.
type HandlersDeps struct {
	Svc                 *analysis.Service
	Sessions            *session.Store
	DB                  *storage.DB
	Searcher            HealthChecker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		svc:                 d.Svc,
		sessions:            d.Sessions,
		db:                  d.DB,
		searcher:            d.Searcher,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleAnalyze handles POST /v1/analyze.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalyzeRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.Analyze(r.Context(), req)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGenerateModule handles POST /v1/modules/generate.
func (h *Handlers) HandleGenerateModule(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateModuleRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.AgentCode == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "agent_code is required")
		return
	}

	resp, err := h.svc.GenerateModule(r.Context(), req)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGetSession handles GET /v1/sessions/{session_id}.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.GetSession(r.Context(), r.PathValue("session_id"))
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleListAgents handles GET /v1/agents.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	codes := catalog.Codes()
	infos := make([]model.AgentInfo, 0, len(codes))
	for _, code := range codes {
		agent, err := catalog.Get(code)
		if err != nil {
			continue
		}
		infos = append(infos, model.AgentInfo{
			Code:        agent.Code,
			Name:        agent.Name,
			Description: agent.Description,
		})
	}
	writeJSON(w, r, http.StatusOK, infos)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	dbStatus := ""
	if h.db != nil {
		dbStatus = "connected"
		if err := h.db.Ping(r.Context()); err != nil {
			dbStatus = "disconnected"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	resp := model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Database: dbStatus,
		Sessions: h.sessions.Len(),
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}

	if h.searcher != nil {
		if err := h.searcher.Healthy(r.Context()); err == nil {
			resp.Qdrant = "connected"
		} else {
			resp.Qdrant = "disconnected"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}
	}

	writeJSON(w, r, httpStatus, resp)
}

// writeAnalysisError maps pipeline errors to HTTP responses.
func (h *Handlers) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	var ineligible *analysis.IneligibleAgentError
	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, index.ErrEmptyCorpus):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeEmptyCorpus, "no usable text in the submitted documents")
	case errors.Is(err, catalog.ErrUnknownAgent):
		writeError(w, r, http.StatusNotFound, model.ErrCodeUnknownAgent, err.Error())
	case errors.Is(err, analysis.ErrSessionNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeSessionNotFound, err.Error())
	case errors.As(err, &ineligible):
		writeErrorDetails(w, r, http.StatusConflict, model.ErrCodeIneligibleAgent,
			"agent is not eligible for this session", model.RejectionDetail{
				AgentCode:      ineligible.AgentCode,
				EligibleAgents: ineligible.EligibleAgents,
				Guidance:       "re-run analysis with updated documents, or set force to bypass the eligibility gate",
			})
	case errors.Is(err, analysis.ErrClassifierTimeout):
		writeError(w, r, http.StatusGatewayTimeout, model.ErrCodeClassifierTimeout, err.Error())
	default:
		h.logger.Error("request failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}
