package index

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/brightfield-ai/scout/internal/embed"
	"github.com/brightfield-ai/scout/internal/model"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// QdrantStore backs session indexes with a shared Qdrant collection.
// Segments are upserted with a session_id payload field; each session's
// Index queries with a session filter, so sessions stay isolated while
// sharing one collection.
type QdrantStore struct {
	client     *qdrant.Client
	embedder   embed.Provider
	collection string
	dims       uint64
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("index: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("index: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantStore creates a QdrantStore and connects to the server via gRPC.
func NewQdrantStore(cfg QdrantConfig, embedder embed.Provider, logger *slog.Logger) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("index: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantStore{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist and
// ensures payload indexes are present. CreateFieldIndex is idempotent on
// Qdrant, so index creation is always attempted to backfill indexes added
// after the collection was first created.
func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("index: check collection exists: %w", err)
	}

	if !exists {
		m := uint64(16)
		efConstruct := uint64(128)

		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.dims,
				Distance: qdrant.Distance_Cosine,
				HnswConfig: &qdrant.HnswConfigDiff{
					M:           &m,
					EfConstruct: &efConstruct,
				},
			}),
		}); err != nil {
			return fmt.Errorf("index: create collection %q: %w", q.collection, err)
		}
		q.logger.Info("qdrant: created collection", "collection", q.collection, "dims", q.dims)
	} else {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	for _, field := range []string{"session_id", "role"} {
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      &keywordType,
		}); err != nil {
			return fmt.Errorf("index: ensure index on %q: %w", field, err)
		}
	}

	intType := qdrant.FieldType_FieldTypeInteger
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "ord",
		FieldType:      &intType,
	}); err != nil {
		return fmt.Errorf("index: ensure index on %q: %w", "ord", err)
	}

	return nil
}

// Build replaces the session's points with the given segments and returns
// an Index scoped to that session. Re-ingestion with the same session ID
// overwrites the previous corpus.
func (q *QdrantStore) Build(ctx context.Context, sessionID string, segments []model.Segment) (Index, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyCorpus
	}

	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	vecs, err := q.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("index: embed %d segments: %w", len(segments), err)
	}

	if err := q.deleteSession(ctx, sessionID); err != nil {
		return nil, err
	}

	points := make([]*qdrant.PointStruct, len(segments))
	for i, s := range segments {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.New().String()),
			Vectors: qdrant.NewVectorsDense(vecs[i]),
			Payload: qdrant.NewValueMap(map[string]any{
				"session_id":   sessionID,
				"role":         string(s.Role),
				"source_title": s.SourceTitle,
				"source_doc":   s.SourceDoc,
				"text":         s.Text,
				"ord":          int64(i),
			}),
		}
	}

	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return nil, fmt.Errorf("index: qdrant upsert %d points: %w", len(points), err)
	}

	return &qdrantIndex{store: q, sessionID: sessionID, size: len(segments)}, nil
}

// deleteSession removes all points belonging to one session.
func (q *QdrantStore) deleteSession(ctx context.Context, sessionID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("session_id", sessionID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("index: qdrant delete session %q: %w", sessionID, err)
	}
	return nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5
// seconds; concurrent checks after expiry are deduplicated via singleflight
// so only one gRPC call is made.
func (q *QdrantStore) Healthy(ctx context.Context) error {
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// Use context.Background() instead of the caller's ctx because
	// singleflight reuses the first caller's context — if that caller
	// cancels, all waiters would get a stale error.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := q.client.HealthCheck(checkCtx)
		if err != nil {
			q.storeHealthErr(fmt.Errorf("index: qdrant unhealthy: %w", err))
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// storeHealthErr stores an error (or nil) in the atomic.Value.
// atomic.Value cannot store nil directly, so it is wrapped in a pointer.
func (q *QdrantStore) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

func (q *QdrantStore) loadHealthErr() error {
	v := q.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantStore) Close() error {
	return q.client.Close()
}

// qdrantIndex is a session-scoped view over the shared collection.
type qdrantIndex struct {
	store     *QdrantStore
	sessionID string
	size      int
}

// Len returns the number of segments indexed for this session.
func (idx *qdrantIndex) Len() int {
	return idx.size
}

// Query embeds the text and searches the session's points. Qdrant returns
// points ordered by score; equal scores are re-sorted by the ord payload
// field to keep the ingestion-order tie-break stable.
func (idx *qdrantIndex) Query(ctx context.Context, text string, k int) ([]model.Segment, error) {
	if k <= 0 {
		return nil, nil
	}

	qvec, err := idx.store.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}

	limit := uint64(k) //nolint:gosec // k is bounded by caller config
	scored, err := idx.store.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.store.collection,
		Query:          qdrant.NewQueryDense(qvec),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("session_id", idx.sessionID),
			},
		},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant query: %w", err)
	}

	type hit struct {
		seg   model.Segment
		score float32
		ord   int64
	}
	hits := make([]hit, 0, len(scored))
	for _, sp := range scored {
		payload := sp.Payload
		if payload == nil {
			continue
		}
		hits = append(hits, hit{
			seg: model.Segment{
				Text:        payload["text"].GetStringValue(),
				SourceTitle: payload["source_title"].GetStringValue(),
				SourceDoc:   payload["source_doc"].GetStringValue(),
				Role:        model.DocumentRole(payload["role"].GetStringValue()),
			},
			score: sp.Score,
			ord:   payload["ord"].GetIntegerValue(),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].ord < hits[j].ord
	})

	out := make([]model.Segment, len(hits))
	for i, h := range hits {
		out[i] = h.seg
	}
	return out, nil
}
