// Package docstore owns the ingested corpus: chunk text, source references
// and embeddings. The similarity index holds only (id, vector) pairs derived
// from this store, so the store is the source of truth for reindexing.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborchat/harborchat/internal/embed"
	"github.com/harborchat/harborchat/internal/index"
	"github.com/harborchat/harborchat/internal/log"
)

var (
	// ErrEmptyInput indicates document text that is empty after trimming.
	ErrEmptyInput = errors.New("document text is empty")

	// ErrNotFound indicates an unknown chunk id.
	ErrNotFound = errors.New("chunk not found")
)

// Chunk is one indexed window of an ingested document. Chunks are immutable;
// re-ingesting a source creates new chunks rather than mutating old ones.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	SourceRef string    `json:"source_ref"`
	Embedding []float32 `json:"-"`
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds chunks in memory and keeps the similarity index in sync.
type Store struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
	order  []string // ids in ingestion order, drives reindex ordering

	embedder embed.Embedder
	idx      index.Index
	size     int
	overlap  int
	logger   log.Logger
}

// New creates a document store. size and overlap control chunking in runes.
func New(embedder embed.Embedder, idx index.Index, size, overlap int, logger log.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		chunks:   make(map[string]Chunk),
		embedder: embedder,
		idx:      idx,
		size:     size,
		overlap:  overlap,
		logger:   logger.With("component", "docstore"),
	}
}

// Ingest chunks text, embeds every chunk, then indexes and stores them.
// All embeddings are computed before any state changes, and chunks are only
// published to the store once every index insert succeeded, so a failing
// embedding provider or index backend leaves the store untouched rather than
// half-ingested. Returns the created chunk ids in document order.
func (s *Store) Ingest(ctx context.Context, text, sourceRef string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	pieces := chunkText(trimmed, s.size, s.overlap)
	vectors := make([][]float32, len(pieces))
	for i, piece := range pieces {
		vec, err := s.embedder.Embed(ctx, piece)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d of %q: %w", i, sourceRef, err)
		}
		vectors[i] = vec
	}

	now := time.Now().UTC()
	created := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		created[i] = Chunk{
			ID:        uuid.NewString(),
			Text:      piece,
			SourceRef: sourceRef,
			Embedding: vectors[i],
			Seq:       i,
			CreatedAt: now,
		}
	}

	for i, c := range created {
		if err := s.idx.Add(ctx, c.ID, c.Embedding); err != nil {
			// Unwind the entries already indexed so the index never refers
			// to chunks the store does not own. Remove is idempotent.
			for _, added := range created[:i] {
				if rmErr := s.idx.Remove(ctx, added.ID); rmErr != nil {
					s.logger.Warn("rollback of indexed chunk failed",
						"chunk_id", added.ID, "error", rmErr)
				}
			}
			return nil, fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
	}

	s.mu.Lock()
	for _, c := range created {
		s.chunks[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	s.mu.Unlock()

	ids := make([]string, len(created))
	for i, c := range created {
		ids[i] = c.ID
	}

	s.logger.Info("document ingested",
		"source_ref", sourceRef,
		"chunks", len(ids),
		"text_runes", len([]rune(trimmed)))
	return ids, nil
}

// Get returns the chunk with the given id.
func (s *Store) Get(_ context.Context, id string) (Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	if !ok {
		return Chunk{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Reindex rebuilds the similarity index from the stored chunks. The snapshot
// is taken under the read lock and handed to the index's atomic Replace, so
// searches running concurrently see either the old or the new index.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	s.mu.RLock()
	entries := make([]index.Entry, 0, len(s.order))
	for _, id := range s.order {
		c := s.chunks[id]
		entries = append(entries, index.Entry{ID: c.ID, Vector: c.Embedding})
	}
	s.mu.RUnlock()

	if err := s.idx.Replace(ctx, entries); err != nil {
		return 0, fmt.Errorf("replacing index entries: %w", err)
	}

	s.logger.Info("index rebuilt", "entries", len(entries))
	return len(entries), nil
}
