package analysis

import (
	"math"
	"sort"

	"github.com/brightfield-ai/scout/internal/catalog"
	"github.com/brightfield-ai/scout/internal/model"
)

// lowPriorityReason replaces the classifier's reason when a low-priority
// agent is downgraded for thin evidence.
const lowPriorityReason = "Insufficient independent evidence for low-priority agent."

// excludedReason is recorded when the caller explicitly excluded an agent.
const excludedReason = "Agent excluded by caller request."

// TierPolicy derives a coverage tier from the number of agents mapped to a
// pain. Tiering is policy, not contract: the default buckets by count, and
// deployments can substitute their own derivation.
type TierPolicy func(agentCount int) model.CoverageTier

// DefaultTierPolicy buckets coverage by mapped-agent count.
func DefaultTierPolicy(agentCount int) model.CoverageTier {
	switch {
	case agentCount >= 3:
		return model.TierHigh
	case agentCount == 2:
		return model.TierMedium
	case agentCount == 1:
		return model.TierLow
	default:
		return model.TierUncovered
	}
}

// GuardrailConfig parameterizes the deterministic post-conditions.
type GuardrailConfig struct {
	// TopN is how many ranked agents are projected into the selected set.
	TopN int
	// MaxRationaleLen truncates per-agent rationale strings.
	MaxRationaleLen int
	// MinLowPriorityEvidence is the snippet count below which a
	// low-priority agent is downgraded.
	MinLowPriorityEvidence int
	// Tier derives coverage tiers for mapping entries that lack one.
	Tier TierPolicy
}

// DefaultGuardrailConfig returns the production thresholds.
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		TopN:                   4,
		MaxRationaleLen:        240,
		MinLowPriorityEvidence: 2,
		Tier:                   DefaultTierPolicy,
	}
}

// Enforce applies the guardrail rules to a parsed record, in order:
// caller exclusions, the low-priority evidence threshold, eligibility
// ranking, top-N projection with rationale, and coverage scoring. The
// classifier proposes; this function decides.
//
// A record without an eligibility key is returned unchanged — the engine
// never invents an eligibility mapping. Every rule is downgrade-only: no
// rule promotes an agent to eligible.
func Enforce(rec *Record, priority, lowPriority, excluded []string, cfg GuardrailConfig) {
	if rec.Eligibility == nil {
		return
	}
	if cfg.Tier == nil {
		cfg.Tier = DefaultTierPolicy
	}

	// Rule 0: caller exclusions. The prompt asks the classifier to skip
	// excluded agents, but the prompt is advisory — this is the enforcement.
	for _, code := range excluded {
		if e, ok := rec.Eligibility[code]; ok && e.Eligible {
			e.Eligible = false
			e.ExclusionReason = excludedReason
			rec.Eligibility[code] = e
		}
	}

	// Rule 1: evidence threshold for low-priority agents. Downgrade-only.
	for _, code := range lowPriority {
		e, ok := rec.Eligibility[code]
		if !ok || !e.Eligible {
			continue
		}
		if len(e.Evidence) < cfg.MinLowPriorityEvidence {
			e.Eligible = false
			e.Reason = lowPriorityReason
			rec.Eligibility[code] = e
		}
	}

	// Rule 2: ranking. Seed with the canonical catalog order (plus any
	// unknown codes, sorted) so stability does not depend on map iteration,
	// then sort by priority position, confidence, evidence count.
	prioIdx := make(map[string]int, len(priority))
	for i, code := range priority {
		prioIdx[code] = i
	}
	rank := func(code string) int {
		if i, ok := prioIdx[code]; ok {
			return i
		}
		return math.MaxInt32 // absent from the priority list sorts last, stable within the tier
	}

	selected := make([]string, 0, len(rec.Eligibility))
	for _, code := range catalog.Codes() {
		if e, ok := rec.Eligibility[code]; ok && e.Eligible {
			selected = append(selected, code)
		}
	}
	var unknown []string
	for code, e := range rec.Eligibility {
		if !catalog.Known(code) && e.Eligible {
			unknown = append(unknown, code)
		}
	}
	sort.Strings(unknown)
	selected = append(selected, unknown...)

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if rank(a) != rank(b) {
			return rank(a) < rank(b)
		}
		ea, eb := rec.Eligibility[a], rec.Eligibility[b]
		if ea.Confidence != eb.Confidence {
			return ea.Confidence > eb.Confidence
		}
		return len(ea.Evidence) > len(eb.Evidence)
	})
	rec.AgentsRanked = selected

	// Rule 3: top-N projection with per-agent rationale, sourced from the
	// reason field. Existing rationale entries are never overwritten.
	topN := cfg.TopN
	if topN > len(selected) {
		topN = len(selected)
	}
	rec.Agents = selected[:topN:topN]
	if rec.Rationale == nil {
		rec.Rationale = make(map[string]string, topN)
	}
	for _, code := range rec.Agents {
		if rec.Rationale[code] != "" {
			continue
		}
		reason := rec.Eligibility[code].Reason
		if len(reason) > cfg.MaxRationaleLen {
			reason = reason[:cfg.MaxRationaleLen]
		}
		rec.Rationale[code] = reason
	}

	// Rule 4: coverage. Fill tiers the classifier left blank, then compute
	// the score when absent: covered pains over total pains, zero when
	// there are no pains.
	for i := range rec.Mapping {
		if rec.Mapping[i].Coverage == "" {
			rec.Mapping[i].Coverage = cfg.Tier(len(rec.Mapping[i].Agents))
		}
	}
	if rec.CoverageScore == 0 {
		rec.CoverageScore = coverageScore(rec.PainPoints, rec.Mapping)
	}
	rec.CoverageScore = clamp01(rec.CoverageScore)
}

// coverageScore computes the fraction of pains with at least one mapped
// agent, rounded to 3 decimal places. Returns 0 for an empty pain list.
func coverageScore(pains []string, mapping []model.PainMapping) float64 {
	if len(pains) == 0 {
		return 0
	}
	byPain := make(map[string]model.PainMapping, len(mapping))
	for _, m := range mapping {
		byPain[m.Pain] = m
	}
	covered := 0
	for _, p := range pains {
		if m, ok := byPain[p]; ok && len(m.Agents) > 0 {
			covered++
		}
	}
	return math.Round(float64(covered)/float64(len(pains))*1000) / 1000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
