// Package index provides similarity-searchable segment collections and the
// role-balanced retriever that assembles evidence sets for classification.
//
// Two backends implement the same contract: a per-session in-memory cosine
// index (the default) and a shared Qdrant collection with session-scoped
// payload filtering. Both are read-only after construction; queries never
// mutate an index.
package index

import (
	"context"
	"errors"

	"github.com/brightfield-ai/scout/internal/model"
)

// ErrEmptyCorpus is returned when there are no segments to index.
// "No content to index" is a hard error surfaced to the caller, not an
// empty result.
var ErrEmptyCorpus = errors.New("index: no content to index")

// Index is a similarity-searchable collection of segments. Implementations
// must be safe for concurrent queries.
type Index interface {
	// Query returns up to k segments ordered by descending similarity to
	// the query text. Ties are broken by original ingestion order (stable).
	Query(ctx context.Context, text string, k int) ([]model.Segment, error)

	// Len returns the number of indexed segments.
	Len() int
}

// Builder constructs an Index for a session from its segments.
type Builder interface {
	// Build indexes the segments under the given session identifier.
	// Returns ErrEmptyCorpus when segments is empty. Rebuilding an
	// existing session replaces its previous contents.
	Build(ctx context.Context, sessionID string, segments []model.Segment) (Index, error)
}
