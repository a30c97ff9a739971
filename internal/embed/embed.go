// Package embed provides the embedding providers that turn text into
// fixed-dimension vectors for similarity search.
//
// Two providers exist. Deterministic derives a pseudo-embedding from a hash
// of the input text: it is a pure function, needs no network, and makes the
// whole retrieval pipeline testable offline. Gemini calls the Gemini
// embedding API and is selected via configuration when an API key is
// available.
//
// A provider failure is a service error: callers must never receive partial
// embeddings.
package embed

import "context"

// Embedder turns text into a fixed-dimension vector. Given the same
// configuration, Embed must be deterministic for the same input text.
type Embedder interface {
	// Embed returns the embedding vector for text. The returned slice
	// always has exactly Dimension() components.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed output vector length.
	Dimension() int
}
