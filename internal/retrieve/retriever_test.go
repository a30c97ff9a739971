package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/harborchat/harborchat/internal/docstore"
	"github.com/harborchat/harborchat/internal/index"
)

// stubEmbedder maps texts to fixed vectors so similarities are engineered,
// not emergent.
type stubEmbedder struct {
	vectors map[string][]float32
	dim     int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }

type stubGetter struct {
	chunks map[string]docstore.Chunk
}

func (s *stubGetter) Get(_ context.Context, id string) (docstore.Chunk, error) {
	if c, ok := s.chunks[id]; ok {
		return c, nil
	}
	return docstore.Chunk{}, docstore.ErrNotFound
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	r := New(&stubEmbedder{dim: 2}, index.NewMemory(nil), &stubGetter{}, 0, nil)

	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := r.Retrieve(context.Background(), q, 3); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Retrieve(%q) error = %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestRetrieve_RelevanceFloor(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory(nil)

	// relevant scores 1.0 against the query, barely scores ~0.
	if err := idx.Add(ctx, "relevant", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "barely", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{
		"what time does the office close": {1, 0},
	}}
	getter := &stubGetter{chunks: map[string]docstore.Chunk{
		"relevant": {ID: "relevant", Text: "the office closes at 6pm"},
		"barely":   {ID: "barely", Text: "parking is on level 2"},
	}}

	r := New(embedder, idx, getter, 0.5, nil)
	results, err := r.Retrieve(ctx, "what time does the office close", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (floor should drop the weak match)", len(results))
	}
	if results[0].Chunk.ID != "relevant" {
		t.Errorf("result = %q, want relevant", results[0].Chunk.ID)
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %v, want ~1.0", results[0].Score)
	}
}

func TestRetrieve_EmptyCorpusIsValid(t *testing.T) {
	r := New(&stubEmbedder{dim: 2}, index.NewMemory(nil), &stubGetter{}, 0.1, nil)

	results, err := r.Retrieve(context.Background(), "anything at all", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestRetrieve_MissingChunkSkipped(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory(nil)

	if err := idx.Add(ctx, "present", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "ghost", []float32{1, 0.1}); err != nil {
		t.Fatal(err)
	}

	embedder := &stubEmbedder{dim: 2, vectors: map[string][]float32{"q": {1, 0}}}
	getter := &stubGetter{chunks: map[string]docstore.Chunk{
		"present": {ID: "present", Text: "still here"},
	}}

	r := New(embedder, idx, getter, 0, nil)
	results, err := r.Retrieve(ctx, "q", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v, want ghost chunk skipped not fatal", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "present" {
		t.Errorf("results = %+v, want only the present chunk", results)
	}
}

func TestRetrieve_EmbedderFailurePropagates(t *testing.T) {
	r := New(failingEmbedder{}, index.NewMemory(nil), &stubGetter{}, 0, nil)

	if _, err := r.Retrieve(context.Background(), "q", 3); err == nil {
		t.Fatal("Retrieve() succeeded, want embedding failure to propagate")
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider unreachable")
}

func (failingEmbedder) Dimension() int { return 2 }
