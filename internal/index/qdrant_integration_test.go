package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/brightfield-ai/scout/internal/embed"
	"github.com/brightfield-ai/scout/internal/model"
)

// startQdrant launches a Qdrant container and returns a store connected to
// it. The test is skipped when Docker is unavailable.
func startQdrant(t *testing.T) *QdrantStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.12.4",
		ExposedPorts: []string{"6334/tcp"},
		WaitingFor: wait.ForListeningPort("6334/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	// testcontainers panics (rather than returning an error) when no Docker
	// host can be found; convert that into the error path so the skip below
	// still applies.
	container, err := func() (c testcontainers.Container, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panic: %v", r)
			}
		}()
		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if err != nil {
		t.Skipf("cannot start qdrant container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6334")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewQdrantStore(QdrantConfig{
		URL:        fmt.Sprintf("http://%s:%s", host, port.Port()),
		Collection: "scout_test",
		Dims:       64,
	}, embed.NewLocalProvider(64), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureCollection(ctx))
	return store
}

func TestQdrantRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := startQdrant(t)
	ctx := context.Background()

	segments := []model.Segment{
		{Text: "the customer struggles with invoice reconciliation every month", SourceTitle: "Call", SourceDoc: "call_1", Role: model.RoleTranscript},
		{Text: "ASSET automates invoice processing and accounts receivable follow-up", SourceTitle: "ASSET", SourceDoc: "agents", Role: model.RoleAgentReference},
		{Text: "the company sells accounting software to mid-market firms", SourceTitle: "Company Info", SourceDoc: "web_summary", Role: model.RoleCompanyInfo},
	}

	idx, err := store.Build(ctx, "session-a", segments)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Query(ctx, "invoice reconciliation", 10)
	require.NoError(t, err)
	require.Len(t, got, 3, "all session points should be returned with k > corpus size")

	// The transcript segment shares the most vocabulary with the query, so
	// it should rank first under the hashed embedder.
	assert.Equal(t, segments[0].Text, got[0].Text)
	assert.Equal(t, model.RoleTranscript, got[0].Role)

	// Payload fields survive the round trip.
	for _, seg := range got {
		assert.NotEmpty(t, seg.SourceTitle)
		assert.NotEmpty(t, seg.SourceDoc)
		assert.True(t, model.ValidRole(seg.Role))
	}
}

func TestQdrantSessionIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := startQdrant(t)
	ctx := context.Background()

	idxA, err := store.Build(ctx, "session-a", []model.Segment{
		{Text: "alpha only content", SourceTitle: "A", SourceDoc: "a", Role: model.RoleTranscript},
	})
	require.NoError(t, err)

	idxB, err := store.Build(ctx, "session-b", []model.Segment{
		{Text: "beta only content", SourceTitle: "B", SourceDoc: "b", Role: model.RoleTranscript},
		{Text: "more beta content", SourceTitle: "B", SourceDoc: "b", Role: model.RoleTranscript},
	})
	require.NoError(t, err)

	gotA, err := idxA.Query(ctx, "content", 10)
	require.NoError(t, err)
	require.Len(t, gotA, 1)
	assert.Equal(t, "alpha only content", gotA[0].Text)

	gotB, err := idxB.Query(ctx, "content", 10)
	require.NoError(t, err)
	require.Len(t, gotB, 2)
	for _, seg := range gotB {
		assert.Equal(t, "b", seg.SourceDoc)
	}
}

func TestQdrantRebuildReplacesSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := startQdrant(t)
	ctx := context.Background()

	_, err := store.Build(ctx, "session-a", []model.Segment{
		{Text: "first ingest", SourceTitle: "A", SourceDoc: "a", Role: model.RoleTranscript},
		{Text: "first ingest second segment", SourceTitle: "A", SourceDoc: "a", Role: model.RoleTranscript},
	})
	require.NoError(t, err)

	idx, err := store.Build(ctx, "session-a", []model.Segment{
		{Text: "second ingest", SourceTitle: "A", SourceDoc: "a", Role: model.RoleTranscript},
	})
	require.NoError(t, err)

	got, err := idx.Query(ctx, "ingest", 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "old session points should have been deleted")
	assert.Equal(t, "second ingest", got[0].Text)
}

func TestQdrantHealthyLive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := startQdrant(t)

	require.NoError(t, store.Healthy(context.Background()))
	// Cached result.
	require.NoError(t, store.Healthy(context.Background()))
}
