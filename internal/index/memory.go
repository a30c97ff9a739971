package index

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/harborchat/harborchat/internal/log"
)

// entry is a stored vector with its precomputed norm and insertion sequence.
type entry struct {
	id   string
	vec  []float32
	norm float64
	seq  uint64
}

// Memory is the exhaustive in-memory backend: O(n·D) per query, always
// exact. Safe for concurrent use; a single RWMutex makes mutations mutually
// exclusive with each other and with searches, and Replace swaps the whole
// entry set under the write lock so readers never observe a partial rebuild.
type Memory struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[string]int // id -> position in entries
	dim     int            // 0 until the first entry fixes it
	nextSeq uint64
	logger  log.Logger
}

// NewMemory creates an empty in-memory index.
func NewMemory(logger log.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		byID:   make(map[string]int),
		logger: logger,
	}
}

// Add inserts or replaces a vector. The first entry fixes the index
// dimension for the lifetime of the index.
func (m *Memory) Add(_ context.Context, id string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim != 0 && len(vector) != m.dim {
		return ErrDimensionMismatch
	}

	if pos, ok := m.byID[id]; ok {
		// Replacement keeps the original insertion rank.
		m.entries[pos].vec = vector
		m.entries[pos].norm = norm(vector)
		return nil
	}

	if m.dim == 0 {
		m.dim = len(vector)
	}

	m.nextSeq++
	m.entries = append(m.entries, entry{
		id:   id,
		vec:  vector,
		norm: norm(vector),
		seq:  m.nextSeq,
	})
	m.byID[id] = len(m.entries) - 1
	return nil
}

// Remove deletes an entry. Removing an unknown id is a no-op.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.byID[id]
	if !ok {
		return nil
	}

	m.entries = append(m.entries[:pos], m.entries[pos+1:]...)
	delete(m.byID, id)
	for i := pos; i < len(m.entries); i++ {
		m.byID[m.entries[i].id] = i
	}
	return nil
}

// Search returns up to k entries ranked by descending cosine similarity.
// Ordering is fully deterministic: zero-norm entries last, then similarity
// descending, then insertion order.
func (m *Memory) Search(_ context.Context, vector []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 || len(m.entries) == 0 {
		return []Match{}, nil
	}
	if len(vector) != m.dim {
		return nil, ErrDimensionMismatch
	}

	queryNorm := norm(vector)

	type scored struct {
		id    string
		score float64
		zero  bool
		seq   uint64
	}

	candidates := make([]scored, 0, len(m.entries))
	for _, e := range m.entries {
		candidates = append(candidates, scored{
			id:    e.id,
			score: cosine(vector, e.vec, queryNorm, e.norm),
			zero:  e.norm == 0,
			seq:   e.seq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.zero != b.zero {
			return !a.zero
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.seq < b.seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	matches := make([]Match, 0, k)
	for _, c := range candidates[:k] {
		matches = append(matches, Match{ID: c.id, Score: float32(c.score)})
	}
	return matches, nil
}

// Replace atomically substitutes the full entry set. The replacement is
// built off to the side and swapped in under the write lock, so in-flight
// searches see either the old or the new index, never a mix. The index
// dimension stays fixed once set; a replacement with a different dimension
// is rejected and leaves the current entries in place.
func (m *Memory) Replace(_ context.Context, entries []Entry) error {
	newEntries := make([]entry, 0, len(entries))
	newByID := make(map[string]int, len(entries))
	dim := 0
	var seq uint64

	for _, e := range entries {
		if dim == 0 {
			dim = len(e.Vector)
		} else if len(e.Vector) != dim {
			return ErrDimensionMismatch
		}
		if pos, ok := newByID[e.ID]; ok {
			newEntries[pos].vec = e.Vector
			newEntries[pos].norm = norm(e.Vector)
			continue
		}
		seq++
		newEntries = append(newEntries, entry{
			id:   e.ID,
			vec:  e.Vector,
			norm: norm(e.Vector),
			seq:  seq,
		})
		newByID[e.ID] = len(newEntries) - 1
	}

	m.mu.Lock()
	if m.dim != 0 && dim != 0 && dim != m.dim {
		m.mu.Unlock()
		return ErrDimensionMismatch
	}
	m.entries = newEntries
	m.byID = newByID
	if m.dim == 0 {
		m.dim = dim
	}
	m.nextSeq = seq
	m.mu.Unlock()

	m.logger.Debug("index replaced", "entries", len(newEntries), "dim", dim)
	return nil
}

// Count returns the number of entries.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
