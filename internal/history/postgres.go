package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists exchanges in the chat_exchanges table created by the
// migrations.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a database-backed history store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Append records an exchange.
func (p *Postgres) Append(ctx context.Context, ex Exchange) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO chat_exchanges (id, principal_id, question, answer, cited_chunk_ids, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ex.ID, ex.PrincipalID, ex.Question, ex.Answer, ex.CitedChunkIDs, ex.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting exchange %s: %w", ex.ID, err)
	}
	return nil
}

// ListByPrincipal returns the principal's exchanges oldest first.
func (p *Postgres) ListByPrincipal(ctx context.Context, principalID string) ([]Exchange, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, principal_id, question, answer, cited_chunk_ids, created_at
		 FROM chat_exchanges
		 WHERE principal_id = $1
		 ORDER BY created_at, id`, principalID)
	if err != nil {
		return nil, fmt.Errorf("listing exchanges for %s: %w", principalID, err)
	}
	defer rows.Close()

	exchanges := make([]Exchange, 0)
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.PrincipalID, &ex.Question, &ex.Answer, &ex.CitedChunkIDs, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading exchanges: %w", err)
	}
	return exchanges, nil
}
