package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder is the engine's default Embedder: a deterministic,
// dependency-free stand-in for a real embedding model. The store and
// retrieval pipeline never own the embedding model (spec §9 Non-goals);
// this only keeps the vector-index half of hybrid retrieval exercised
// when no external embedder is configured. Production deployments
// replace it by constructing an Engine with a different
// retrieval.Embedder.
type HashEmbedder struct {
	Dim int
}

// Embed hashes text into Dim deterministic pseudo-random floats,
// normalized to unit length so cosine distance behaves sensibly.
func (e HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}
	out := make([]float32, dim)
	seed := []byte(text)
	var sumSq float64
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i), byte(i>>8)))
		v := float64(int32(binary.BigEndian.Uint32(h[:4]))) / float64(math.MaxInt32)
		out[i] = float32(v)
		sumSq += v * v
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return out, nil
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out, nil
}
