// Package model defines the core domain types shared across Scout:
// document sections and segments, pain points, per-agent eligibility
// records, and the composed analysis result.
package model

import (
	"fmt"
	"strings"
)

// DocumentRole tags where a section of text came from. Retrieval quotas
// and prompt ordering are keyed off this role.
type DocumentRole string

const (
	RoleTranscript     DocumentRole = "transcript"
	RoleAgentReference DocumentRole = "agent_reference"
	RoleCompanyInfo    DocumentRole = "company_info"
)

// ValidRole reports whether r is one of the three known document roles.
func ValidRole(r DocumentRole) bool {
	switch r {
	case RoleTranscript, RoleAgentReference, RoleCompanyInfo:
		return true
	}
	return false
}

// Field length limits on caller-supplied text. These bound the embedding
// pipeline and the prompt budget against a single oversized field.
const (
	MaxSectionTitleLen = 200
	MaxSectionTextLen  = 256 * 1024 // 256 KB per section
	MaxCompanyInfoLen  = 64 * 1024
)

// Section is one titled block of raw document text, as received at the
// ingestion boundary. Many sections reduce to one source document.
type Section struct {
	Title    string       `json:"title"`
	Text     string       `json:"text"`
	SourceID string       `json:"source_id"`
	Role     DocumentRole `json:"role"`
}

// Validate checks per-field limits and the role enum.
func (s Section) Validate() error {
	if len(s.Title) > MaxSectionTitleLen {
		return fmt.Errorf("section title exceeds maximum length of %d characters", MaxSectionTitleLen)
	}
	if len(s.Text) > MaxSectionTextLen {
		return fmt.Errorf("section text exceeds maximum length of %d bytes", MaxSectionTextLen)
	}
	if !ValidRole(s.Role) {
		return fmt.Errorf("unknown document role %q", s.Role)
	}
	return nil
}

// Segment is one bounded window of section text produced by the segmenter.
// Immutable once created; many segments map to one source section.
type Segment struct {
	Text        string       `json:"text"`
	SourceTitle string       `json:"source_title"`
	SourceDoc   string       `json:"source_document"`
	Role        DocumentRole `json:"role"`
}

// PainPoint is a short statement of a business problem, optionally backed
// by verbatim evidence quotes drawn from segment text.
type PainPoint struct {
	Description string   `json:"description"`
	Evidence    []string `json:"evidence,omitempty"`
}

// EligibilityRecord is the per-agent verdict proposed by the classifier
// and enforced by the guardrail engine. After parsing, only the guardrail
// engine mutates it.
type EligibilityRecord struct {
	Eligible        bool     `json:"eligible"`
	Reason          string   `json:"reason"`
	Evidence        []string `json:"evidence"`
	Confidence      float64  `json:"confidence"`
	ExclusionReason string   `json:"exclusion_reason,omitempty"`
}

// CoverageTier buckets how well a pain point is served by the mapped agents.
// Tier derivation is policy, not contract: the classifier's proposal is kept
// when present and recomputed from the mapped-agent count otherwise.
type CoverageTier string

const (
	TierHigh      CoverageTier = "high"
	TierMedium    CoverageTier = "medium"
	TierLow       CoverageTier = "low"
	TierUncovered CoverageTier = "uncovered"
)

// PainMapping links one pain point to the agents that address it.
type PainMapping struct {
	Pain     string       `json:"pain"`
	Agents   []string     `json:"agents"`
	Coverage CoverageTier `json:"coverage"`
}

// AnalysisResult is the guardrail-validated output of one analysis pass.
//
// Invariant: CoverageScore = (#pains with >=1 mapped agent) / (#pains),
// clamped to [0,1], and 0 when PainPoints is empty.
type AnalysisResult struct {
	PainPoints    []string                     `json:"pain_points"`
	Eligibility   map[string]EligibilityRecord `json:"eligibility"`
	AgentsRanked  []string                     `json:"agents_ranked"`
	Agents        []string                     `json:"agents"`
	Mapping       []PainMapping                `json:"mapping"`
	CoverageScore float64                      `json:"coverage_score"`
	Rationale     map[string]string            `json:"rationale"`
	Notes         []string                     `json:"notes,omitempty"`
}

// ParseCSV splits a comma-separated list into trimmed, non-empty entries.
// Used for the priority / low_priority / excluded_agents request fields,
// which accept either JSON arrays or CSV strings.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
