package retrieval

import (
	"sort"

	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/memstore"
	"github.com/memengine/core/internal/memstore/vectorindex"
)

// Fused is one identifier's combined Reciprocal Rank Fusion score.
type Fused struct {
	ID    core.ID
	Score float64
}

// FuseRRF merges BM25 and vector candidate lists by identifier using
// Reciprocal Rank Fusion: score(d) = Σ w_i / (k + rank_i(d)), 1-indexed
// ranks, per spec §4.7 Stage 2.
func FuseRRF(lexical []memstore.ScoredDoc, vector []vectorindex.Match, k int, wBM25, wVector float64) []Fused {
	if k <= 0 {
		k = 60
	}
	if wBM25 == 0 {
		wBM25 = 1.0
	}
	if wVector == 0 {
		wVector = 1.0
	}

	scores := make(map[core.ID]float64)
	for rank, hit := range lexical {
		scores[hit.ID] += wBM25 / float64(k+rank+1)
	}
	for rank, hit := range vector {
		scores[hit.ID] += wVector / float64(k+rank+1)
	}

	out := make([]Fused, 0, len(scores))
	for id, s := range scores {
		out = append(out, Fused{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
