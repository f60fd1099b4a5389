package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/brightfield-ai/scout/internal/embed"
	"github.com/brightfield-ai/scout/internal/model"
)

// MemoryBuilder builds brute-force cosine indexes held entirely in memory.
// Suited to the per-session corpus sizes this service sees (hundreds of
// segments); the Qdrant backend covers anything larger.
type MemoryBuilder struct {
	embedder embed.Provider
}

// NewMemoryBuilder creates a builder that embeds segments with the given provider.
func NewMemoryBuilder(embedder embed.Provider) *MemoryBuilder {
	return &MemoryBuilder{embedder: embedder}
}

// Build embeds all segments and returns an immutable in-memory index.
func (b *MemoryBuilder) Build(ctx context.Context, _ string, segments []model.Segment) (Index, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyCorpus
	}

	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("index: embed %d segments: %w", len(segments), err)
	}

	owned := make([]model.Segment, len(segments))
	copy(owned, segments)
	return &memoryIndex{
		segments: owned,
		vectors:  vecs,
		embedder: b.embedder,
	}, nil
}

// memoryIndex is a read-only brute-force cosine similarity index.
type memoryIndex struct {
	segments []model.Segment
	vectors  [][]float32
	embedder embed.Provider
}

// Len returns the number of indexed segments.
func (m *memoryIndex) Len() int {
	return len(m.segments)
}

// Query embeds the query text and returns the k nearest segments by cosine
// similarity, ties broken by ingestion order.
func (m *memoryIndex) Query(ctx context.Context, text string, k int) ([]model.Segment, error) {
	if k <= 0 {
		return nil, nil
	}

	qvec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}

	type scored struct {
		ord   int
		score float32
	}
	results := make([]scored, len(m.segments))
	for i, vec := range m.vectors {
		results[i] = scored{ord: i, score: cosine(qvec, vec)}
	}

	// SliceStable keeps ingestion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if k > len(results) {
		k = len(results)
	}
	out := make([]model.Segment, k)
	for i := 0; i < k; i++ {
		out[i] = m.segments[results[i].ord]
	}
	return out, nil
}

// cosine computes cosine similarity between two vectors. Mismatched or
// zero-norm vectors score 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
