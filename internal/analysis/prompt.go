package analysis

import (
	"fmt"
	"strings"

	"github.com/brightfield-ai/scout/internal/catalog"
	"github.com/brightfield-ai/scout/internal/index"
)

// ruleSpec is the rule specification sent with every classification call.
// It instructs the model, but nothing here is trusted: the guardrail
// engine re-applies every threshold and ordering rule deterministically
// after parsing.
const ruleSpec = `Select ONLY from: HYPE, STRIKE, CARE, VISION, FLOW, ASSET, TEAM, CODE.

EVIDENCE RULES
- Mark an agent eligible ONLY if explicit, text-grounded evidence exists in retrieved context.
- For every eligible agent, cite 1-3 verbatim snippets (<=30 words each).
- For commonly confused agents you did NOT select (e.g., sales vs recruitment), add a brief 'exclusion_reason'.

DISCIPLINE
- No hallucinations: absence of explicit capability => eligible=false.
- If evidence conflicts, prefer transcript/company context over generic agent reference.

OPTIONAL PRIORITY
- If 'priority' list is provided, rank agents by that order first, then by confidence/evidence count.
- If 'low_priority' list is provided, require >=2 independent evidence snippets to mark those agents eligible.

MAPPING & COVERAGE
- Build a pain->agent mapping table; if a pain has no agent, mark it 'uncovered'.
- coverage_score in [0,1] = (#pains with >=1 agent) / (total pains).

OUTPUT (STRICT JSON ONLY):
{
  "pain_points": ["..."],
  "eligibility": {
    "HYPE":   {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""},
    "STRIKE": {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""},
    "CARE":   {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""},
    "VISION": {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""},
    "FLOW":   {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""},
    "ASSET":  {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""},
    "TEAM":   {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""},
    "CODE":   {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0, "exclusion_reason": ""}
  },
  "agents_ranked": [],
  "mapping": [ {"pain": "...", "agents": ["..."], "coverage": "high|medium|low|uncovered"} ],
  "coverage_score": 0.0,
  "notes": ["uncovered pains, conflicts, or risks"]
}`

// AnalysisQuery is the retrieval query for the first-phase classification.
// It doubles as the task statement inside the composed prompt, matching
// what the evidence was selected against.
const AnalysisQuery = `You are an AI strategy consultant.
Task:
1) Extract 3-8 concrete pains from the provided context.
2) Apply the rules to decide agent eligibility strictly with evidence snippets.
3) Build a pain->agent mapping and compute coverage_score.
4) Output STRICT JSON only per schema.`

// BuildAnalysisPrompt composes the full first-phase prompt: task, optional
// agent lists, the agent catalog, the rule specification, and the
// retrieved evidence.
func BuildAnalysisPrompt(evidence index.EvidenceSet, priority, lowPriority, excluded []string) string {
	var b strings.Builder
	b.WriteString(AnalysisQuery)
	b.WriteString("\n\n")

	writeOptionalList(&b, "PRIORITY", priority)
	writeOptionalList(&b, "LOW_PRIORITY", lowPriority)
	writeOptionalList(&b, "EXCLUDED_AGENTS", excluded)
	b.WriteString("\n")

	b.WriteString("Agent reference:\n")
	b.WriteString(catalog.ReferenceBlock())
	b.WriteString("\n")
	b.WriteString(ruleSpec)
	b.WriteString("\n\nRetrieved context:\n")
	b.WriteString(FormatEvidence(evidence))
	return b.String()
}

// BuildModulePrompt composes the second-phase prompt that asks for a
// free-text implementation module for one agent. The ownership rules are
// stated here for steering, but the sanitizer is the enforcement.
func BuildModulePrompt(agent catalog.Agent, pains []string, evidence index.EvidenceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an implementation module for the %s (%s).\n", agent.Code, agent.Name)
	fmt.Fprintf(&b, "Capability scope: %s\n\n", agent.Description)

	if len(pains) > 0 {
		b.WriteString("Address these client pain points:\n")
		for _, p := range pains {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	b.WriteString("RULES\n")
	b.WriteString("- Describe ONLY capabilities in this agent's scope; never claim capabilities owned by other agents.\n")
	b.WriteString("- Ground every recommendation in the retrieved context; if the context has no relevant outcome, say 'no relevant outcomes'.\n")
	b.WriteString("- Plain prose, one recommendation per line. No code blocks, no 'sources:' lines.\n\n")

	b.WriteString("Retrieved context:\n")
	b.WriteString(FormatEvidence(evidence))
	return b.String()
}

// FormatEvidence renders an evidence set as tagged blocks, one per segment.
func FormatEvidence(evidence index.EvidenceSet) string {
	var b strings.Builder
	for i, seg := range evidence {
		fmt.Fprintf(&b, "[%d] (%s) %s / %s\n%s\n\n", i+1, seg.Role, seg.SourceTitle, seg.SourceDoc, seg.Text)
	}
	return b.String()
}

func writeOptionalList(b *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, "%s (optional): %s\n", label, strings.Join(items, ", "))
	} else {
		fmt.Fprintf(b, "%s (optional):\n", label)
	}
}
