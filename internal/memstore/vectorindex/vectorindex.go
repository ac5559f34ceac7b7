// Package vectorindex provides the dense-vector half of hybrid retrieval
// (spec §4.7): a pluggable nearest-neighbor index searched in parallel with
// BM25, each candidate set fused downstream by Reciprocal Rank Fusion.
package vectorindex

import (
	"context"

	"github.com/memengine/core/internal/core"
)

// Match is a single nearest-neighbor hit.
type Match struct {
	ID       core.ID
	Distance float32 // smaller is closer
}

// VectorIndex is implemented by every backend (in-process or external).
// Every operation is scoped to a single user partition, matching
// MemoryProvider's owner-scoping discipline.
type VectorIndex interface {
	Upsert(ctx context.Context, userID string, id core.ID, vec []float32) error
	Delete(ctx context.Context, userID string, id core.ID) error
	Search(ctx context.Context, userID string, query []float32, topN int) ([]Match, error)
	Close() error
}
