// Package retrieve turns a natural-language query into the chunks most
// relevant to it: embed the query, search the similarity index, apply the
// relevance floor and resolve ids back to chunk text.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harborchat/harborchat/internal/docstore"
	"github.com/harborchat/harborchat/internal/embed"
	"github.com/harborchat/harborchat/internal/index"
	"github.com/harborchat/harborchat/internal/log"
)

// ErrEmptyQuery indicates a query that is empty after trimming.
var ErrEmptyQuery = errors.New("query is empty")

// Result pairs a retrieved chunk with its similarity to the query.
type Result struct {
	Chunk docstore.Chunk `json:"chunk"`
	Score float32        `json:"score"`
}

// ChunkGetter resolves chunk ids to chunks.
type ChunkGetter interface {
	Get(ctx context.Context, id string) (docstore.Chunk, error)
}

// Retriever answers top-k relevance queries over the ingested corpus.
type Retriever struct {
	embedder embed.Embedder
	idx      index.Index
	store    ChunkGetter
	minScore float32
	logger   log.Logger
}

// New creates a retriever. Matches scoring below minScore are dropped.
func New(embedder embed.Embedder, idx index.Index, store ChunkGetter, minScore float32, logger log.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		idx:      idx,
		store:    store,
		minScore: minScore,
		logger:   logger.With("component", "retriever"),
	}
}

// Retrieve returns up to k chunks relevant to query, ordered by descending
// similarity. An empty result is a valid outcome, not an error. A chunk id
// the index knows but the store does not is logged and skipped; the index is
// a derived cache and may briefly lag the store.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.idx.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Score < r.minScore {
			continue
		}
		chunk, err := r.store.Get(ctx, m.ID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				r.logger.Warn("indexed chunk missing from store", "chunk_id", m.ID)
				continue
			}
			return nil, fmt.Errorf("resolving chunk %s: %w", m.ID, err)
		}
		results = append(results, Result{Chunk: chunk, Score: m.Score})
	}

	r.logger.Debug("retrieved",
		"query_runes", len([]rune(query)),
		"matches", len(matches),
		"results", len(results))
	return results, nil
}
