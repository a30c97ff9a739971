// Package index implements the similarity index: (id, vector) entries with
// top-k cosine-similarity search.
//
// Two interchangeable backends satisfy the Index interface. Memory is the
// exhaustive in-memory scan: always available, always exact, and the
// correctness oracle for the other backend. Postgres stores vectors in a
// pgvector column with an HNSW index: approximate, used opportunistically
// when a database is configured. The backend is selected once at startup and
// never switches mid-run; callers only ever see the Index interface.
//
// The index owns no chunk text. It is a derived structure, rebuildable from
// the document store at any time via Replace.
package index

import (
	"context"
	"errors"
	"math"
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// dimension already established in the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is a single indexed vector.
type Entry struct {
	ID     string
	Vector []float32
}

// Match is a search result: an entry id with its cosine similarity to the
// query vector, in [-1, 1].
type Match struct {
	ID    string
	Score float32
}

// Index stores (id, vector) entries and answers top-k nearest-neighbor
// queries by cosine similarity.
//
// Contract shared by all backends:
//   - Add fails with ErrDimensionMismatch if the vector length differs from
//     entries already present. Adding an existing id replaces its vector but
//     keeps its original insertion rank.
//   - Search returns up to k matches sorted by descending similarity; ties
//     keep insertion order. Searching an empty index returns an empty slice.
//     Entries with zero-norm vectors always rank last, with similarity 0.
//   - Remove is idempotent; removing an unknown id is a no-op.
//   - Replace atomically substitutes the full entry set: concurrent searches
//     see either the old or the new index, never a mix. The fixed dimension
//     survives a Replace; mismatched entries are rejected.
type Index interface {
	Add(ctx context.Context, id string, vector []float32) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Replace(ctx context.Context, entries []Entry) error
	Count(ctx context.Context) (int, error)
}

// norm returns the Euclidean norm of v, accumulated in float64.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity between a and b given their
// precomputed norms. Similarity with a zero-norm vector is defined as 0.
func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
