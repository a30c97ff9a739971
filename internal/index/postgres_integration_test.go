package index

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/harborchat/harborchat/internal/database"
)

// startPostgres spins up a pgvector-enabled Postgres container and returns a
// pool with vector types registered. Gated behind HARBORCHAT_INTEGRATION so
// the suite stays runnable without Docker.
func startPostgres(t *testing.T) *Postgres {
	t.Helper()

	if os.Getenv("HARBORCHAT_INTEGRATION") == "" {
		t.Skip("set HARBORCHAT_INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg17",
		tcpostgres.WithDatabase("harborchat_test"),
		tcpostgres.WithUsername("harborchat"),
		tcpostgres.WithPassword("harborchat"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		t.Fatalf("creating vector extension: %v", err)
	}

	idx, err := NewPostgres(ctx, pool, 3, nil)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	return idx
}

func TestPostgres_SearchOrdering(t *testing.T) {
	idx := startPostgres(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"exact":      {1, 0, 0},
		"close":      {1, 0.5, 0},
		"orthogonal": {0, 1, 0},
	}
	for id, v := range vectors {
		if err := idx.Add(ctx, id, v); err != nil {
			t.Fatalf("Add(%q) error = %v", id, err)
		}
	}

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("len(matches) = %d, want 3", len(matches))
	}
	for i, want := range []string{"exact", "close", "orthogonal"} {
		if matches[i].ID != want {
			t.Errorf("matches[%d].ID = %q, want %q", i, matches[i].ID, want)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}
}

func TestPostgres_TiesKeepInsertionOrder(t *testing.T) {
	idx := startPostgres(t)
	ctx := context.Background()

	if err := idx.Add(ctx, "A", []float32{3, 4, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "B", []float32{3, 4, 0}); err != nil {
		t.Fatal(err)
	}

	matches, err := idx.Search(ctx, []float32{3, 4, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].ID != "A" || matches[1].ID != "B" {
		t.Errorf("tie order = [%s, %s], want [A, B]", matches[0].ID, matches[1].ID)
	}
}

func TestPostgres_ZeroNormEntriesRankLast(t *testing.T) {
	idx := startPostgres(t)
	ctx := context.Background()

	if err := idx.Add(ctx, "zero", []float32{0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "real", []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}

	matches, err := idx.Search(ctx, []float32{0.1, 0.2, 0.3}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].ID != "real" || matches[1].ID != "zero" {
		t.Errorf("order = [%s, %s], want [real, zero]", matches[0].ID, matches[1].ID)
	}
	if matches[1].Score != 0 {
		t.Errorf("zero-norm score = %v, want 0", matches[1].Score)
	}
}

func TestPostgres_ReplaceAndCount(t *testing.T) {
	idx := startPostgres(t)
	ctx := context.Background()

	if err := idx.Add(ctx, "stale", []float32{9, 9, 9}); err != nil {
		t.Fatal(err)
	}

	entries := make([]Entry, 5)
	for i := range entries {
		entries[i] = Entry{ID: fmt.Sprintf("doc-%d", i), Vector: []float32{float32(i), 1, 0}}
	}
	if err := idx.Replace(ctx, entries); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	n, err := idx.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}

	matches, err := idx.Search(ctx, []float32{9, 9, 9}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if m.ID == "stale" {
			t.Error("Replace left the old entry behind")
		}
	}
}

func TestPostgres_RemoveIdempotent(t *testing.T) {
	idx := startPostgres(t)
	ctx := context.Background()

	if err := idx.Add(ctx, "only", []float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Remove(ctx, "only"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := idx.Remove(ctx, "only"); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}

	n, _ := idx.Count(ctx)
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}
