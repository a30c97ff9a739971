package history

import (
	"context"
	"testing"
	"time"
)

func TestMemory_AppendAndList(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	exchanges := []Exchange{
		{ID: "1", PrincipalID: "alice", Question: "q1", Answer: "a1", CreatedAt: base},
		{ID: "2", PrincipalID: "bob", Question: "q2", Answer: "a2", CreatedAt: base.Add(time.Minute)},
		{ID: "3", PrincipalID: "alice", Question: "q3", Answer: "a3", CitedChunkIDs: []string{"c1"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, ex := range exchanges {
		if err := m.Append(ctx, ex); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := m.ListByPrincipal(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByPrincipal() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("order = [%s, %s], want oldest first [1, 3]", got[0].ID, got[1].ID)
	}
	if len(got[1].CitedChunkIDs) != 1 || got[1].CitedChunkIDs[0] != "c1" {
		t.Errorf("cited chunk ids = %v, want [c1]", got[1].CitedChunkIDs)
	}
}

func TestMemory_ListUnknownPrincipal(t *testing.T) {
	m := NewMemory()

	got, err := m.ListByPrincipal(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByPrincipal() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}
