package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/harborchat/harborchat/internal/log"
)

// Postgres is the approximate backend: vectors live in a pgvector column
// with an HNSW index using cosine distance. HNSW trades exactness for query
// speed; any top-1 result is expected to be within a small epsilon of the
// true top-1, but recall is best-effort, not a hard invariant.
//
// Insertion order is tracked by a bigserial column so equal-similarity
// entries rank deterministically. Zero-norm vectors get a flag at insert
// time: cosine distance is undefined for them, so they are forced last with
// similarity 0 instead of poisoning the ordering with NaN.
type Postgres struct {
	pool   *pgxpool.Pool
	dim    int
	logger log.Logger
}

// NewPostgres creates the pgvector-backed index, creating the index_entries
// table and its HNSW index if missing. The vector column is typed with the
// configured dimension, so the dimension is fixed for the table's lifetime.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, dim int, logger log.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS index_entries (
			id        TEXT PRIMARY KEY,
			seq       BIGSERIAL,
			zero_norm BOOLEAN NOT NULL DEFAULT false,
			embedding vector(%d) NOT NULL
		)`, dim)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("creating index_entries table: %w", err)
	}

	if _, err := pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS index_entries_embedding_hnsw
		 ON index_entries USING hnsw (embedding vector_cosine_ops)`); err != nil {
		return nil, fmt.Errorf("creating HNSW index: %w", err)
	}

	return &Postgres{pool: pool, dim: dim, logger: logger}, nil
}

// Add upserts a vector. Replacing an existing id keeps its insertion rank.
func (p *Postgres) Add(ctx context.Context, id string, vector []float32) error {
	if len(vector) != p.dim {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(vector), p.dim)
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO index_entries (id, zero_norm, embedding)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET zero_norm = $2, embedding = $3`,
		id, norm(vector) == 0, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("inserting index entry %q: %w", id, err)
	}
	return nil
}

// Remove deletes an entry. Removing an unknown id is a no-op.
func (p *Postgres) Remove(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM index_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting index entry %q: %w", id, err)
	}
	return nil
}

// Search returns up to k entries by descending cosine similarity.
// A zero-norm query vector matches nothing meaningfully; every entry scores
// 0 and insertion order decides.
func (p *Postgres) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}
	if len(vector) != p.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), p.dim)
	}

	var rows pgx.Rows
	var err error
	if norm(vector) == 0 {
		rows, err = p.pool.Query(ctx,
			`SELECT id, 0::float4 AS similarity
			 FROM index_entries
			 ORDER BY zero_norm, seq
			 LIMIT $1`, k)
	} else {
		rows, err = p.pool.Query(ctx,
			`SELECT id, CASE WHEN zero_norm THEN 0::float4 ELSE (1 - (embedding <=> $1))::float4 END AS similarity
			 FROM index_entries
			 ORDER BY zero_norm, embedding <=> $1, seq
			 LIMIT $2`, pgvector.NewVector(vector), k)
	}
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return matches, nil
}

// Replace atomically substitutes the full entry set inside one transaction:
// concurrent searches see the pre- or post-rebuild table, never a mix.
func (p *Postgres) Replace(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != p.dim {
			return fmt.Errorf("%w: entry %q has %d, index has %d",
				ErrDimensionMismatch, e.ID, len(e.Vector), p.dim)
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM index_entries`); err != nil {
		return fmt.Errorf("clearing index entries: %w", err)
	}

	// Rows are inserted in entry order; the bigserial seq column preserves
	// it for tie-breaking.
	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO index_entries (id, zero_norm, embedding)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET zero_norm = $2, embedding = $3`,
			e.ID, norm(e.Vector) == 0, pgvector.NewVector(e.Vector)); err != nil {
			return fmt.Errorf("inserting index entry %q: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing replace transaction: %w", err)
	}

	p.logger.Debug("index replaced", "entries", len(entries), "dim", p.dim)
	return nil
}

// Count returns the number of entries.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM index_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting index entries: %w", err)
	}
	return n, nil
}
