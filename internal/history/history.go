// Package history stores completed chat exchanges. The log is append-only;
// exchanges are never edited or deleted.
package history

import (
	"context"
	"sync"
	"time"
)

// Exchange is one question/answer pair with the chunks the answer cited.
type Exchange struct {
	ID            string    `json:"id"`
	PrincipalID   string    `json:"principal_id"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	CitedChunkIDs []string  `json:"cited_chunk_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is an append-only exchange log.
type Store interface {
	Append(ctx context.Context, ex Exchange) error
	ListByPrincipal(ctx context.Context, principalID string) ([]Exchange, error)
}

// Memory keeps exchanges in process memory, ordered by insertion.
type Memory struct {
	mu        sync.RWMutex
	exchanges []Exchange
}

// NewMemory creates an empty in-memory history store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append records an exchange.
func (m *Memory) Append(_ context.Context, ex Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, ex)
	return nil
}

// ListByPrincipal returns the principal's exchanges oldest first.
func (m *Memory) ListByPrincipal(_ context.Context, principalID string) ([]Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Exchange, 0)
	for _, ex := range m.exchanges {
		if ex.PrincipalID == principalID {
			out = append(out, ex)
		}
	}
	return out, nil
}
