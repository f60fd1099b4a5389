package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(64)
	ctx := context.Background()

	a, err := p.Embed(ctx, "invoice reconciliation takes days")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "invoice reconciliation takes days")
	require.NoError(t, err)

	assert.Equal(t, a, b, "same text must embed identically")
	assert.Len(t, a, 64)
	assert.Equal(t, 64, p.Dimensions())
}

func TestLocalProviderNormalized(t *testing.T) {
	p := NewLocalProvider(128)

	vec, err := p.Embed(context.Background(), "some moderately long sentence about sales pipelines")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalProviderLexicalOverlap(t *testing.T) {
	p := NewLocalProvider(256)
	ctx := context.Background()

	query, err := p.Embed(ctx, "invoice processing automation")
	require.NoError(t, err)
	related, err := p.Embed(ctx, "we need automation for invoice processing")
	require.NoError(t, err)
	unrelated, err := p.Embed(ctx, "quarterly marketing campaign budget review")
	require.NoError(t, err)

	assert.Greater(t, dot(query, related), dot(query, unrelated),
		"shared vocabulary should raise cosine similarity")
}

func TestLocalProviderCaseInsensitive(t *testing.T) {
	p := NewLocalProvider(64)
	ctx := context.Background()

	a, err := p.Embed(ctx, "Invoice Processing")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "invoice processing")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestLocalProviderEmptyText(t *testing.T) {
	p := NewLocalProvider(64)

	vec, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestLocalProviderBatchOrder(t *testing.T) {
	p := NewLocalProvider(64)
	ctx := context.Background()

	texts := []string{"first text", "second text", "third text"}
	vecs, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, vecs[i])
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
