// Package rerank defines the pluggable cross-encoder reranking stage of
// spec §4.7 Stage 2: score the top-N (query, content) pairs and let the
// reranker's score decide final order. Not owned by the core — an HTTP
// implementation and a no-op passthrough ship here (spec §9 Non-goals,
// "pluggable embedder/reranker").
package rerank

import "context"

// Pair is one (identifier, content) candidate to be scored against a
// query.
type Pair struct {
	ID      string
	Content string
}

// Reranker scores Pairs against query, returning a map from Pair.ID to
// score (higher is more relevant).
type Reranker interface {
	Rerank(ctx context.Context, query string, pairs []Pair) (map[string]float64, error)
}

// NoOp is the default reranker when rerank_enabled = false: it leaves
// fusion order untouched by handing back the pairs' positional rank as a
// descending score.
type NoOp struct{}

func (NoOp) Rerank(ctx context.Context, query string, pairs []Pair) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for i, p := range pairs {
		out[p.ID] = float64(len(pairs) - i)
	}
	return out, nil
}
