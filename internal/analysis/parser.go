package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightfield-ai/scout/internal/model"
)

// Record is the semi-structured result proposed by the classifier. Every
// key is optional; a nil Eligibility map means the key was absent entirely,
// which the guardrail engine treats as a pass-through.
type Record struct {
	PainPoints    []string                           `json:"pain_points"`
	Eligibility   map[string]model.EligibilityRecord `json:"eligibility"`
	AgentsRanked  []string                           `json:"agents_ranked"`
	Agents        []string                           `json:"agents"`
	Mapping       []model.PainMapping                `json:"mapping"`
	CoverageScore float64                            `json:"coverage_score"`
	Rationale     map[string]string                  `json:"rationale"`
	Notes         []string                           `json:"notes"`
}

// Parse extracts a Record from raw classifier text.
//
// Models routinely wrap the JSON payload in explanatory prose despite
// strict-output instructions; that is an expected condition, not an edge
// case. Parse first attempts a full-text decode, then retries on the
// substring between the first '{' and the last '}'. When both fail it
// returns ErrParseFailure wrapped with the decode error.
func Parse(raw string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err == nil {
		return rec, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Record{}, fmt.Errorf("%w: no JSON object in output", ErrParseFailure)
	}

	// Fresh value: a failed full-text decode may have left partial fields.
	var embedded Record
	if err := json.Unmarshal([]byte(raw[start:end+1]), &embedded); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return embedded, nil
}
