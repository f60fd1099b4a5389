// Package analysis implements the evidence-gated classification engine:
// retrieval-backed prompting of the classifier, parsing of its untrusted
// output, deterministic guardrail enforcement, ownership sanitization for
// free-text module generation, and session lifecycle around both phases.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/brightfield-ai/scout/internal/catalog"
	"github.com/brightfield-ai/scout/internal/index"
	"github.com/brightfield-ai/scout/internal/llm"
	"github.com/brightfield-ai/scout/internal/model"
	"github.com/brightfield-ai/scout/internal/segment"
	"github.com/brightfield-ai/scout/internal/session"
	"github.com/brightfield-ai/scout/internal/storage"
)

var tracer = otel.Tracer("scout/analysis")

// ErrInvalidInput is returned for malformed ingestion requests.
var ErrInvalidInput = errors.New("analysis: invalid input")

// Config holds the tunable parameters of the analysis pipeline.
type Config struct {
	SearchK           int
	Quotas            index.Quotas
	ClassifierTimeout time.Duration
	MaxTokens         int
	Guardrails        GuardrailConfig
}

// Service orchestrates both analysis phases. Each call is synchronous:
// the caller waits on the index build and the classifier round trip.
// Calls on different sessions are independent; calls on the same session
// race with last-write-wins semantics.
type Service struct {
	splitter   *segment.Splitter
	builder    index.Builder
	classifier llm.Client
	sanitizer  *Sanitizer
	sessions   *session.Store
	db         *storage.DB // nil disables persistence and recovery
	cfg        Config
	logger     *slog.Logger
}

// NewService wires the pipeline. db may be nil, in which case sessions
// live only in the cache.
func NewService(splitter *segment.Splitter, builder index.Builder, classifier llm.Client,
	sanitizer *Sanitizer, sessions *session.Store, db *storage.DB, cfg Config, logger *slog.Logger) *Service {
	if cfg.Guardrails.TopN == 0 {
		cfg.Guardrails = DefaultGuardrailConfig()
	}
	return &Service{
		splitter:   splitter,
		builder:    builder,
		classifier: classifier,
		sanitizer:  sanitizer,
		sessions:   sessions,
		db:         db,
		cfg:        cfg,
		logger:     logger,
	}
}

// Analyze runs the full first phase: segment, index, retrieve, classify,
// parse, enforce guardrails, persist. Ingestion is all-or-nothing: the
// session entry is written only after every step succeeded, so a failed
// request never leaves partial state behind.
func (s *Service) Analyze(ctx context.Context, req model.AnalyzeRequest) (model.AnalyzeResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.Analyze")
	defer span.End()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	span.SetAttributes(attribute.String("scout.session_id", sessionID))

	sections, err := flattenDocuments(req)
	if err != nil {
		return model.AnalyzeResponse{}, err
	}

	segments := s.splitter.Split(sections)
	idx, err := s.builder.Build(ctx, sessionID, segments)
	if err != nil {
		return model.AnalyzeResponse{}, err
	}
	span.SetAttributes(attribute.Int("scout.segments", len(segments)))

	retriever := index.NewRetriever(idx, s.cfg.SearchK, s.cfg.Quotas)
	evidence, err := retriever.Retrieve(ctx, AnalysisQuery)
	if err != nil {
		return model.AnalyzeResponse{}, err
	}

	prompt := BuildAnalysisPrompt(evidence, req.Priority, req.LowPriority, req.ExcludedAgents)
	raw, err := s.classify(ctx, prompt)
	if err != nil {
		return model.AnalyzeResponse{}, err
	}

	rec, err := Parse(raw)
	if err != nil {
		// Unparsable output degrades to an empty record: no pain points,
		// no eligible agents. Not fatal.
		s.logger.Warn("analysis: classifier output unparsable, using empty record",
			"session_id", sessionID, "error", err)
		rec = Record{}
	}

	Enforce(&rec, req.Priority, req.LowPriority, req.ExcludedAgents, s.cfg.Guardrails)
	result := rec.toResult()

	entry := session.Entry{
		ID:          sessionID,
		Index:       idx,
		Segments:    segments,
		Analysis:    result,
		CompanyInfo: req.CompanyInfo,
		Raw:         raw,
		CreatedAt:   time.Now().UTC(),
	}
	if s.db != nil {
		if err := s.db.SaveSession(ctx, storage.SessionRecord{
			ID:          sessionID,
			CompanyInfo: req.CompanyInfo,
			Analysis:    result,
			Segments:    segments,
			Raw:         raw,
			CreatedAt:   entry.CreatedAt,
		}); err != nil {
			return model.AnalyzeResponse{}, fmt.Errorf("analysis: persist session: %w", err)
		}
	}
	s.sessions.Put(entry)

	return model.AnalyzeResponse{
		SessionID:     sessionID,
		PainPoints:    result.PainPoints,
		Eligibility:   result.Eligibility,
		AgentsRanked:  result.AgentsRanked,
		Agents:        result.Agents,
		Mapping:       result.Mapping,
		CoverageScore: result.CoverageScore,
		Rationale:     result.Rationale,
		Notes:         result.Notes,
		Raw:           raw,
	}, nil
}

// GenerateModule runs the second phase: re-query the session's index with
// an agent-specific prompt, generate free text, and pass it through the
// ownership sanitizer. Force bypasses the eligibility gate but never the
// sanitizer.
func (s *Service) GenerateModule(ctx context.Context, req model.GenerateModuleRequest) (model.ModuleResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.GenerateModule")
	defer span.End()

	code := strings.ToUpper(strings.TrimSpace(req.AgentCode))
	agent, err := catalog.Get(code)
	if err != nil {
		return model.ModuleResponse{}, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	span.SetAttributes(
		attribute.String("scout.session_id", sessionID),
		attribute.String("scout.agent_code", code),
	)

	entry, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return model.ModuleResponse{}, err
	}

	if !req.Force && !contains(entry.Analysis.AgentsRanked, code) {
		return model.ModuleResponse{}, &IneligibleAgentError{
			AgentCode:      code,
			EligibleAgents: entry.Analysis.AgentsRanked,
		}
	}

	pains := req.PainPoints
	if len(pains) == 0 {
		pains = entry.Analysis.PainPoints
	}

	retriever := index.NewRetriever(entry.Index, s.cfg.SearchK, s.cfg.Quotas)
	query := fmt.Sprintf("%s (%s) capabilities addressing: %s", agent.Code, agent.Name, strings.Join(pains, "; "))
	evidence, err := retriever.Retrieve(ctx, query)
	if err != nil {
		return model.ModuleResponse{}, err
	}

	raw, err := s.classify(ctx, BuildModulePrompt(agent, pains, evidence))
	if err != nil {
		return model.ModuleResponse{}, err
	}

	return model.ModuleResponse{
		AgentCode:   code,
		AgentModule: s.sanitizer.Sanitize(code, raw),
	}, nil
}

// GetSession returns the cached (or recovered) state of a session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (model.SessionResponse, error) {
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	entry, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return model.SessionResponse{}, err
	}
	analysis := entry.Analysis
	return model.SessionResponse{
		SessionID:   entry.ID,
		CompanyInfo: entry.CompanyInfo,
		Analysis:    &analysis,
		CreatedAt:   entry.CreatedAt,
	}, nil
}

// lookupSession checks the cache, then attempts recovery from persistence
// by rebuilding the index from the stored segments.
func (s *Service) lookupSession(ctx context.Context, sessionID string) (session.Entry, error) {
	if entry, ok := s.sessions.Get(sessionID); ok {
		return entry, nil
	}
	if s.db == nil {
		return session.Entry{}, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}

	rec, err := s.db.LoadSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return session.Entry{}, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return session.Entry{}, err
	}

	idx, err := s.builder.Build(ctx, sessionID, rec.Segments)
	if err != nil {
		// A persisted session without rebuildable segments is unrecoverable.
		s.logger.Warn("analysis: session recovery failed", "session_id", sessionID, "error", err)
		return session.Entry{}, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}

	entry := session.Entry{
		ID:          rec.ID,
		Index:       idx,
		Segments:    rec.Segments,
		Analysis:    rec.Analysis,
		CompanyInfo: rec.CompanyInfo,
		Raw:         rec.Raw,
		CreatedAt:   rec.CreatedAt,
	}
	s.sessions.Put(entry)
	s.logger.Info("analysis: session recovered from storage", "session_id", sessionID, "segments", len(rec.Segments))
	return entry, nil
}

// classify calls the classifier under the configured deadline and maps
// deadline expiry to ErrClassifierTimeout.
func (s *Service) classify(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ClassifierTimeout)
	defer cancel()

	temperature := float32(0.2)
	maxTokens := s.cfg.MaxTokens
	raw, err := s.classifier.Generate(callCtx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrClassifierTimeout, s.cfg.ClassifierTimeout)
		}
		return "", fmt.Errorf("analysis: classifier call: %w", err)
	}
	return raw, nil
}

// flattenDocuments validates and flattens the ingestion payload into
// sections, preserving document order. The company info blurb, when
// present, becomes one extra section.
func flattenDocuments(req model.AnalyzeRequest) ([]model.Section, error) {
	if len(req.Documents) == 0 && req.CompanyInfo == "" {
		return nil, fmt.Errorf("%w: no documents provided", ErrInvalidInput)
	}
	if len(req.CompanyInfo) > model.MaxCompanyInfoLen {
		return nil, fmt.Errorf("%w: company_info exceeds %d bytes", ErrInvalidInput, model.MaxCompanyInfoLen)
	}

	var sections []model.Section
	for di, doc := range req.Documents {
		if !model.ValidRole(doc.Role) {
			return nil, fmt.Errorf("%w: documents[%d]: unknown role %q", ErrInvalidInput, di, doc.Role)
		}
		for si, in := range doc.Sections {
			sec := model.Section{
				Title:    in.Title,
				Text:     in.Text,
				SourceID: doc.SourceID,
				Role:     doc.Role,
			}
			if err := sec.Validate(); err != nil {
				return nil, fmt.Errorf("%w: documents[%d].sections[%d]: %v", ErrInvalidInput, di, si, err)
			}
			sections = append(sections, sec)
		}
	}
	if req.CompanyInfo != "" {
		sections = append(sections, model.Section{
			Title:    "Company Info",
			Text:     req.CompanyInfo,
			SourceID: "web_summary",
			Role:     model.RoleCompanyInfo,
		})
	}
	return sections, nil
}

// toResult converts the enforced record into the response shape,
// normalizing nil collections so JSON consumers see empty values instead
// of null.
func (r Record) toResult() model.AnalysisResult {
	out := model.AnalysisResult{
		PainPoints:    r.PainPoints,
		Eligibility:   r.Eligibility,
		AgentsRanked:  r.AgentsRanked,
		Agents:        r.Agents,
		Mapping:       r.Mapping,
		CoverageScore: r.CoverageScore,
		Rationale:     r.Rationale,
		Notes:         r.Notes,
	}
	if out.PainPoints == nil {
		out.PainPoints = []string{}
	}
	if out.Eligibility == nil {
		out.Eligibility = map[string]model.EligibilityRecord{}
	}
	if out.AgentsRanked == nil {
		out.AgentsRanked = []string{}
	}
	if out.Agents == nil {
		out.Agents = []string{}
	}
	if out.Mapping == nil {
		out.Mapping = []model.PainMapping{}
	}
	if out.Rationale == nil {
		out.Rationale = map[string]string{}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
