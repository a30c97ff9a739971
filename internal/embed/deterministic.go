package embed

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
)

// Deterministic is a hash-seeded pseudo-embedder. The FNV-1a hash of the
// input text seeds a PCG generator that fills the vector, so identical text
// always yields an identical vector and the cosine similarity of a text with
// itself is exactly 1.
//
// It carries no semantic signal between different texts; it exists so the
// service runs (and is testable) without any embedding API.
type Deterministic struct {
	dim int
}

// NewDeterministic creates a deterministic embedder with the given dimension.
func NewDeterministic(dim int) *Deterministic {
	return &Deterministic{dim: dim}
}

// Embed returns the pseudo-embedding for text. It never fails.
func (d *Deterministic) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text)) // fnv Write never returns an error
	seed := h.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	vec := make([]float32, d.dim)
	for i := range vec {
		vec[i] = rng.Float32()
	}
	return vec, nil
}

// Dimension returns the configured vector length.
func (d *Deterministic) Dimension() int {
	return d.dim
}
