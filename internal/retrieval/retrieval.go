// Package retrieval implements the two-stage hybrid retrieval pipeline
// of spec §4.7: parallel BM25 + dense candidate generation, Reciprocal
// Rank Fusion, optional cross-encoder rerank, and temporal-decay/
// confidence/scope tie-breaking.
package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/memengine/core/internal/core"
	"github.com/memengine/core/internal/memstore"
	"github.com/memengine/core/internal/memstore/vectorindex"
	"github.com/memengine/core/internal/retrieval/rerank"
)

// LexicalSearcher is the BM25 half of Stage 1.
type LexicalSearcher interface {
	BM25Search(userID, query string, topN int) []memstore.ScoredDoc
}

// Embedder turns a query into a dense vector. Not owned by the core —
// pluggable per spec §9 Non-goals, so this pipeline only ever consumes
// the interface.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MemoryGetter fetches the full Memory behind a candidate identifier so
// the fusion/tie-break stage can read confidence, last_access_at, and
// content.
type MemoryGetter interface {
	Get(ctx context.Context, userID string, id core.ID) (*core.Memory, error)
}

// ProvenanceTracker records that a memory was surfaced by a retrieval,
// the same narrow seam internal/janitor consults for its own
// provenance writes. Wiring it here is what satisfies spec §8
// "every successful retrieval appends exactly one retrieval event per
// returned memory".
type ProvenanceTracker interface {
	TrackRetrieval(memoryID core.ID, score float64, retrievedBy string) error
}

// Weights bundles the RRF and tie-break weight configuration (spec §4.7,
// wired from internal/config).
type Weights struct {
	RRFK         int
	RRFBM25      float64
	RRFVector    float64
	Similarity   float64
	Recency      float64
	Confidence   float64
	DecayLambda  float64
}

// Request asks for top_k memories relevant to query within owner's
// partition, optionally scoped to a project.
type Request struct {
	Query     string
	UserID    string
	ProjectID string
	Scope     core.Scope
	TopK      int
}

// Result is one ranked memory with its fused score.
type Result struct {
	Memory *core.Memory
	Score  float64
}

// Pipeline wires the two candidate generators, the embedder, fusion, and
// an optional reranker.
type Pipeline struct {
	Lexical    LexicalSearcher
	Vectors    vectorindex.VectorIndex
	Embedder   Embedder
	Memories   MemoryGetter
	Reranker   rerank.Reranker
	Provenance ProvenanceTracker
	Weights    Weights
}

// New constructs a Pipeline. A nil Reranker defaults to rerank.NoOp{}. A
// nil ProvenanceTracker leaves retrievals unrecorded — only acceptable
// during early bootstrap before the Provenance Service exists.
func New(lexical LexicalSearcher, vectors vectorindex.VectorIndex, embedder Embedder, memories MemoryGetter, reranker rerank.Reranker, provenance ProvenanceTracker, weights Weights) *Pipeline {
	if reranker == nil {
		reranker = rerank.NoOp{}
	}
	if weights.RRFK <= 0 {
		weights.RRFK = 60
	}
	return &Pipeline{Lexical: lexical, Vectors: vectors, Embedder: embedder, Memories: memories, Reranker: reranker, Provenance: provenance, Weights: weights}
}

const candidateTopN = 50

// Retrieve runs the full two-stage pipeline, broadening scope once if
// the narrower scope yields fewer than TopK results (spec §4.7
// scope-aware broadening).
func (p *Pipeline) Retrieve(ctx context.Context, req Request) ([]Result, error) {
	results, err := p.retrieveAtScope(ctx, req, req.Scope)
	if err != nil {
		return nil, err
	}
	if req.TopK <= 0 || len(results) >= req.TopK || req.Scope == "" {
		final := clampTopK(results, req.TopK)
		p.trackRetrievals(final, req.UserID)
		return final, nil
	}

	broadened := req.Scope.Broaden()
	if broadened == req.Scope {
		final := clampTopK(results, req.TopK)
		p.trackRetrievals(final, req.UserID)
		return final, nil
	}
	more, err := p.retrieveAtScope(ctx, req, broadened)
	if err != nil {
		final := clampTopK(results, req.TopK)
		p.trackRetrievals(final, req.UserID)
		return final, nil
	}
	merged := mergeByID(results, more)
	final := clampTopK(merged, req.TopK)
	p.trackRetrievals(final, req.UserID)
	return final, nil
}

// trackRetrievals records one retrieval provenance event per returned
// memory (spec §8 "Provenance totality"). Best-effort: a tracking
// failure does not invalidate results already fetched for the caller.
func (p *Pipeline) trackRetrievals(results []Result, retrievedBy string) {
	if p.Provenance == nil {
		return
	}
	for _, r := range results {
		_ = p.Provenance.TrackRetrieval(r.Memory.ID, r.Score, retrievedBy)
	}
}

func (p *Pipeline) retrieveAtScope(ctx context.Context, req Request, scope core.Scope) ([]Result, error) {
	rewritten := RewriteQuery(req.Query)

	lexHits := p.Lexical.BM25Search(req.UserID, rewritten, candidateTopN)

	var vecHits []vectorindex.Match
	if p.Embedder != nil && p.Vectors != nil {
		vec, err := p.Embedder.Embed(ctx, rewritten)
		if err == nil {
			vecHits, _ = p.Vectors.Search(ctx, req.UserID, vec, candidateTopN)
		}
	}

	fused := FuseRRF(lexHits, vecHits, p.Weights.RRFK, p.Weights.RRFBM25, p.Weights.RRFVector)

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		m, err := p.Memories.Get(ctx, req.UserID, f.ID)
		if err != nil || m == nil || !m.Valid {
			continue
		}
		if scope != "" && !m.Scope.LessEqual(scope) {
			continue
		}
		final := p.finalScore(f.Score, m)
		results = append(results, Result{Memory: m, Score: final})
	}

	sort.SliceStable(results, func(i, k int) bool { return results[i].Score > results[k].Score })

	if err := p.applyRerank(ctx, req.Query, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) finalScore(rrfScore float64, m *core.Memory) float64 {
	decay := math.Exp(-p.Weights.DecayLambda * daysSince(m.LastAccessAt))
	return rrfScore*weightOrDefault(p.Weights.Similarity, 0.5) +
		decay*weightOrDefault(p.Weights.Recency, 0.3) +
		m.Confidence*weightOrDefault(p.Weights.Confidence, 0.2)
}

func weightOrDefault(w, def float64) float64 {
	if w == 0 {
		return def
	}
	return w
}

func daysSince(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return time.Since(t).Hours() / 24
}

func (p *Pipeline) applyRerank(ctx context.Context, query string, results []Result) error {
	n := len(results)
	if n > candidateTopN {
		n = candidateTopN
	}
	if n == 0 {
		return nil
	}
	pairs := make([]rerank.Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = rerank.Pair{ID: string(results[i].Memory.ID), Content: results[i].Memory.Content}
	}
	scores, err := p.Reranker.Rerank(ctx, query, pairs)
	if err != nil {
		return nil // reranker failure degrades to fusion order, not a retrieval error
	}
	for i := 0; i < n; i++ {
		if s, ok := scores[string(results[i].Memory.ID)]; ok {
			results[i].Score = s
		}
	}
	sort.SliceStable(results, func(i, k int) bool { return results[i].Score > results[k].Score })
	return nil
}

func clampTopK(results []Result, topK int) []Result {
	if topK <= 0 || topK >= len(results) {
		return results
	}
	return results[:topK]
}

func mergeByID(a, b []Result) []Result {
	seen := make(map[core.ID]struct{}, len(a))
	out := append([]Result(nil), a...)
	for _, r := range a {
		seen[r.Memory.ID] = struct{}{}
	}
	for _, r := range b {
		if _, ok := seen[r.Memory.ID]; ok {
			continue
		}
		seen[r.Memory.ID] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Score > out[k].Score })
	return out
}
