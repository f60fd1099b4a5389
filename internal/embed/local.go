package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider embeds text with a deterministic bag-of-words feature
// hashing projection. No model, no network: each lowercased token is
// hashed into one of dims buckets with a hash-derived sign, and the
// resulting vector is L2-normalized.
//
// The projection preserves lexical overlap (shared vocabulary raises
// cosine similarity) but carries no semantics. It exists so the service
// degrades to keyword-style retrieval instead of refusing to start when
// no embedding backend is configured, and it gives tests a stable ranking.
type LocalProvider struct {
	dims int
}

// NewLocalProvider creates a hashing provider with the given dimensionality.
func NewLocalProvider(dims int) *LocalProvider {
	return &LocalProvider{dims: dims}
}

// Dimensions returns the embedding vector size.
func (p *LocalProvider) Dimensions() int {
	return p.dims
}

// Embed projects text into a normalized term-hash vector.
func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dims)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dims)) //nolint:gosec
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch projects each text independently.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
