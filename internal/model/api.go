package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeEmptyCorpus       = "EMPTY_CORPUS"
	ErrCodeUnknownAgent      = "UNKNOWN_AGENT"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeIneligibleAgent   = "INELIGIBLE_AGENT"
	ErrCodeClassifierTimeout = "CLASSIFIER_TIMEOUT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// DocumentInput is one source document at the ingestion boundary. A
// document reduces to titled sections; multi-document ingestion is
// order-preserving and concatenative (no dedup across documents).
type DocumentInput struct {
	SourceID string         `json:"source_id"`
	Role     DocumentRole   `json:"role"`
	Sections []SectionInput `json:"sections"`
}

// SectionInput is one titled block of text inside a DocumentInput.
type SectionInput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// AnalyzeRequest is the request body for POST /v1/analyze.
//
// SessionID defaults to "default" when omitted — a deliberate convenience
// for single-caller deployments, and a documented cross-caller collision
// risk. Priority, LowPriority, and ExcludedAgents hold agent codes.
type AnalyzeRequest struct {
	Documents      []DocumentInput `json:"documents"`
	CompanyInfo    string          `json:"company_info,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Priority       []string        `json:"priority,omitempty"`
	LowPriority    []string        `json:"low_priority,omitempty"`
	ExcludedAgents []string        `json:"excluded_agents,omitempty"`
}

// AnalyzeResponse is the response body for POST /v1/analyze. It carries
// the guardrail-validated analysis plus the raw classifier text for
// auditability.
type AnalyzeResponse struct {
	SessionID     string                       `json:"session_id"`
	PainPoints    []string                     `json:"pain_points"`
	Eligibility   map[string]EligibilityRecord `json:"eligibility"`
	AgentsRanked  []string                     `json:"agents_ranked"`
	Agents        []string                     `json:"agents"`
	Mapping       []PainMapping                `json:"mapping"`
	CoverageScore float64                      `json:"coverage_score"`
	Rationale     map[string]string            `json:"rationale"`
	Notes         []string                     `json:"notes,omitempty"`
	Raw           string                       `json:"raw"`
}

// GenerateModuleRequest is the request body for POST /v1/modules/generate.
// Force bypasses the eligibility gate but never the ownership sanitizer.
type GenerateModuleRequest struct {
	AgentCode  string   `json:"agent_code"`
	SessionID  string   `json:"session_id,omitempty"`
	PainPoints []string `json:"pain_points,omitempty"`
	Force      bool     `json:"force,omitempty"`
}

// ModuleResponse is the response body for POST /v1/modules/generate.
// An empty AgentModule means the sanitizer removed everything; absence of
// content is signaled by an empty string, never by sentinel text.
type ModuleResponse struct {
	AgentCode   string `json:"agent_code"`
	AgentModule string `json:"agent_module"`
}

// RejectionDetail explains why a module-generation request was refused.
type RejectionDetail struct {
	AgentCode      string   `json:"agent_code"`
	EligibleAgents []string `json:"eligible_agents"`
	Guidance       string   `json:"guidance"`
}

// AgentInfo is one catalog entry in the GET /v1/agents listing.
type AgentInfo struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
	Qdrant   string `json:"qdrant,omitempty"`
	Sessions int    `json:"sessions"`
	Uptime   int64  `json:"uptime_seconds"`
}

// SessionResponse is the response body for GET /v1/sessions/{session_id}.
type SessionResponse struct {
	SessionID   string          `json:"session_id"`
	CompanyInfo string          `json:"company_info,omitempty"`
	Analysis    *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
