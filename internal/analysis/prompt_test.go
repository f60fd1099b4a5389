package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightfield-ai/scout/internal/catalog"
	"github.com/brightfield-ai/scout/internal/index"
	"github.com/brightfield-ai/scout/internal/model"
)

func TestBuildAnalysisPromptContainsAllParts(t *testing.T) {
	evidence := index.EvidenceSet{
		{Text: "we lose invoices every month", SourceTitle: "Call", SourceDoc: "call1", Role: model.RoleTranscript},
	}
	prompt := BuildAnalysisPrompt(evidence, []string{"ASSET"}, []string{"CODE"}, []string{"HYPE"})

	assert.Contains(t, prompt, "PRIORITY (optional): ASSET")
	assert.Contains(t, prompt, "LOW_PRIORITY (optional): CODE")
	assert.Contains(t, prompt, "EXCLUDED_AGENTS (optional): HYPE")
	assert.Contains(t, prompt, "STRICT JSON")
	assert.Contains(t, prompt, "we lose invoices every month")
	// The full catalog is always in the prompt.
	for _, code := range catalog.Codes() {
		assert.Contains(t, prompt, code)
	}
}

func TestBuildAnalysisPromptEmptyLists(t *testing.T) {
	prompt := BuildAnalysisPrompt(nil, nil, nil, nil)
	assert.Contains(t, prompt, "PRIORITY (optional):\n")
	assert.Contains(t, prompt, "LOW_PRIORITY (optional):\n")
	assert.Contains(t, prompt, "EXCLUDED_AGENTS (optional):\n")
}

func TestBuildModulePrompt(t *testing.T) {
	agent, err := catalog.Get("CARE")
	require.NoError(t, err)

	evidence := index.EvidenceSet{
		{Text: "tickets pile up overnight", SourceTitle: "Call", SourceDoc: "call1", Role: model.RoleTranscript},
	}
	prompt := BuildModulePrompt(agent, []string{"slow support replies"}, evidence)

	assert.Contains(t, prompt, "CARE")
	assert.Contains(t, prompt, agent.Name)
	assert.Contains(t, prompt, "slow support replies")
	assert.Contains(t, prompt, "tickets pile up overnight")
	assert.Contains(t, prompt, "no relevant outcomes")
}

func TestFormatEvidenceNumbersAndRoles(t *testing.T) {
	evidence := index.EvidenceSet{
		{Text: "first", SourceTitle: "A", SourceDoc: "d1", Role: model.RoleTranscript},
		{Text: "second", SourceTitle: "B", SourceDoc: "d2", Role: model.RoleAgentReference},
	}
	out := FormatEvidence(evidence)
	assert.Contains(t, out, "[1] (transcript) A / d1\nfirst")
	assert.Contains(t, out, "[2] (agent_reference) B / d2\nsecond")
}
