package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightfield-ai/scout/internal/embed"
	"github.com/brightfield-ai/scout/internal/index"
	"github.com/brightfield-ai/scout/internal/llm"
	"github.com/brightfield-ai/scout/internal/model"
	"github.com/brightfield-ai/scout/internal/segment"
	"github.com/brightfield-ai/scout/internal/session"
	"github.com/brightfield-ai/scout/internal/storage"
)

// stubClassifier returns canned output, optionally blocking until the
// context expires.
type stubClassifier struct {
	output string
	err    error
	block  bool
	calls  int
}

func (s *stubClassifier) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

const classifierOutput = `{
	"pain_points": ["invoices reconciled by hand", "support tickets sit overnight"],
	"eligibility": {
		"ASSET": {"eligible": true, "reason": "manual invoice work", "evidence": ["we reconcile invoices by hand", "AR follow-ups are manual"], "confidence": 0.9},
		"CARE": {"eligible": true, "reason": "ticket backlog", "evidence": ["tickets sit overnight", "no chat coverage"], "confidence": 0.8},
		"HYPE": {"eligible": false, "reason": "", "evidence": [], "confidence": 0.0}
	},
	"mapping": [
		{"pain": "invoices reconciled by hand", "agents": ["ASSET"]},
		{"pain": "support tickets sit overnight", "agents": ["CARE"]}
	]
}`

func testService(t *testing.T, classifier llm.Client, db *storage.DB) *Service {
	t.Helper()
	splitter, err := segment.New(500, 50)
	require.NoError(t, err)
	sanitizer, err := NewSanitizer()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewService(
		splitter,
		index.NewMemoryBuilder(embed.NewLocalProvider(64)),
		classifier,
		sanitizer,
		session.New(16, time.Hour),
		db,
		Config{
			SearchK:           80,
			Quotas:            index.Quotas{Transcript: 30, AgentReference: 10, CompanyInfo: 5},
			ClassifierTimeout: 5 * time.Second,
			MaxTokens:         3000,
			Guardrails:        DefaultGuardrailConfig(),
		},
		logger,
	)
}

func analyzeReq(sessionID string) model.AnalyzeRequest {
	return model.AnalyzeRequest{
		SessionID: sessionID,
		Documents: []model.DocumentInput{{
			SourceID: "call1",
			Role:     model.RoleTranscript,
			Sections: []model.SectionInput{{
				Title: "Discovery Call",
				Text:  "We reconcile invoices by hand every month. Support tickets sit overnight with nobody answering.",
			}},
		}},
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)

	resp, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.NoError(t, err)

	assert.Equal(t, "s1", resp.SessionID)
	assert.Len(t, resp.PainPoints, 2)
	assert.Equal(t, []string{"ASSET", "CARE"}, resp.AgentsRanked)
	assert.Equal(t, []string{"ASSET", "CARE"}, resp.Agents)
	assert.Equal(t, 1.0, resp.CoverageScore)
	assert.Equal(t, "manual invoice work", resp.Rationale["ASSET"])
	assert.NotEmpty(t, resp.Raw)
}

func TestAnalyzeDefaultSessionID(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)

	resp, err := svc.Analyze(context.Background(), analyzeReq(""))
	require.NoError(t, err)
	assert.Equal(t, session.DefaultID, resp.SessionID)
}

func TestAnalyzeUnparsableOutputDegradesToEmptyRecord(t *testing.T) {
	svc := testService(t, &stubClassifier{output: "sorry, I cannot help with that"}, nil)

	resp, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.NoError(t, err)
	assert.Empty(t, resp.PainPoints)
	assert.Empty(t, resp.AgentsRanked)
	assert.Empty(t, resp.Agents)
	assert.NotNil(t, resp.Eligibility)
	assert.Empty(t, resp.Eligibility)
}

func TestAnalyzeClassifierTimeout(t *testing.T) {
	svc := testService(t, &stubClassifier{block: true}, nil)
	svc.cfg.ClassifierTimeout = 20 * time.Millisecond

	_, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	assert.ErrorIs(t, err, ErrClassifierTimeout)
}

func TestAnalyzeCallerCancellationIsNotTimeout(t *testing.T) {
	svc := testService(t, &stubClassifier{block: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := svc.Analyze(ctx, analyzeReq("s1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClassifierTimeout)
}

func TestAnalyzeEmptyDocuments(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)

	_, err := svc.Analyze(context.Background(), model.AnalyzeRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyzeUnknownRole(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)

	_, err := svc.Analyze(context.Background(), model.AnalyzeRequest{
		Documents: []model.DocumentInput{{
			SourceID: "x",
			Role:     "presentation",
			Sections: []model.SectionInput{{Title: "T", Text: "text"}},
		}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyzeEmptyCorpus(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)

	_, err := svc.Analyze(context.Background(), model.AnalyzeRequest{
		Documents: []model.DocumentInput{{
			SourceID: "x",
			Role:     model.RoleTranscript,
			Sections: []model.SectionInput{{Title: "Empty", Text: ""}},
		}},
	})
	assert.ErrorIs(t, err, index.ErrEmptyCorpus)
}

func TestGenerateModuleEligible(t *testing.T) {
	classifier := &stubClassifier{output: classifierOutput}
	svc := testService(t, classifier, nil)

	_, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.NoError(t, err)

	classifier.output = "ASSET automates invoice processing and accounts receivable follow-ups."
	resp, err := svc.GenerateModule(context.Background(), model.GenerateModuleRequest{
		AgentCode: "asset", // case-insensitive
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ASSET", resp.AgentCode)
	assert.Contains(t, resp.AgentModule, "invoice processing")
}

func TestGenerateModuleSanitized(t *testing.T) {
	classifier := &stubClassifier{output: classifierOutput}
	svc := testService(t, classifier, nil)

	_, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.NoError(t, err)

	classifier.output = "ASSET handles invoice processing.\nIt also does lead scoring for sales."
	resp, err := svc.GenerateModule(context.Background(), model.GenerateModuleRequest{
		AgentCode: "ASSET",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.NotContains(t, resp.AgentModule, "lead scoring")
	assert.Contains(t, resp.AgentModule, "invoice processing")
}

func TestGenerateModuleSentinelBecomesEmpty(t *testing.T) {
	classifier := &stubClassifier{output: classifierOutput}
	svc := testService(t, classifier, nil)

	_, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.NoError(t, err)

	classifier.output = "No relevant outcomes."
	resp, err := svc.GenerateModule(context.Background(), model.GenerateModuleRequest{
		AgentCode: "ASSET",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "", resp.AgentModule)
}

func TestGenerateModuleIneligible(t *testing.T) {
	classifier := &stubClassifier{output: classifierOutput}
	svc := testService(t, classifier, nil)

	_, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.NoError(t, err)

	_, err = svc.GenerateModule(context.Background(), model.GenerateModuleRequest{
		AgentCode: "HYPE",
		SessionID: "s1",
	})
	var ineligible *IneligibleAgentError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, "HYPE", ineligible.AgentCode)
	assert.Equal(t, []string{"ASSET", "CARE"}, ineligible.EligibleAgents)
}

func TestGenerateModuleForceBypassesGateNotSanitizer(t *testing.T) {
	classifier := &stubClassifier{output: classifierOutput}
	svc := testService(t, classifier, nil)

	_, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.NoError(t, err)

	classifier.output = "HYPE runs campaign optimization.\nAlso invoice processing on the side."
	resp, err := svc.GenerateModule(context.Background(), model.GenerateModuleRequest{
		AgentCode: "HYPE",
		SessionID: "s1",
		Force:     true,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.AgentModule, "campaign optimization")
	// Force never bypasses ownership: ASSET's term is still removed.
	assert.NotContains(t, resp.AgentModule, "invoice processing")
}

func TestGenerateModuleUnknownAgent(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)

	_, err := svc.GenerateModule(context.Background(), model.GenerateModuleRequest{
		AgentCode: "NOPE",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestGenerateModuleSessionNotFound(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)

	_, err := svc.GenerateModule(context.Background(), model.GenerateModuleRequest{
		AgentCode: "ASSET",
		SessionID: "missing",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRecoveryFromStorage(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.Open(ctx, ":memory:", logger)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	classifier := &stubClassifier{output: classifierOutput}
	svc := testService(t, classifier, db)

	_, err = svc.Analyze(ctx, analyzeReq("persisted"))
	require.NoError(t, err)

	// A second service over the same database simulates a restart: the
	// cache is cold but the session recovers from storage, index rebuilt.
	svc2 := testService(t, classifier, db)
	resp, err := svc2.GetSession(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", resp.SessionID)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, []string{"ASSET", "CARE"}, resp.Analysis.AgentsRanked)

	// Module generation works against the recovered index.
	classifier.output = "ASSET automates accounts receivable."
	mod, err := svc2.GenerateModule(ctx, model.GenerateModuleRequest{
		AgentCode: "ASSET",
		SessionID: "persisted",
	})
	require.NoError(t, err)
	assert.Contains(t, mod.AgentModule, "accounts receivable")
}

func TestGetSessionNotFound(t *testing.T) {
	svc := testService(t, &stubClassifier{output: classifierOutput}, nil)
	_, err := svc.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAnalyzeClassifierError(t *testing.T) {
	svc := testService(t, &stubClassifier{err: errors.New("backend down")}, nil)
	_, err := svc.Analyze(context.Background(), analyzeReq("s1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClassifierTimeout)
}
