package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/maresbv/prodscout-go/internal/catalog"
)

// fakeEmbedder returns a fixed embedding for any input.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeStore serves canned dense and sparse rankings and records the limits
// it was asked for.
type fakeStore struct {
	dense       []Hit
	sparse      []Hit
	denseErr    error
	sparseErr   error
	denseLimit  int
	sparseLimit int
}

func (f *fakeStore) EnsureCollection(context.Context) error { return nil }
func (f *fakeStore) Drop(context.Context) error             { return nil }
func (f *fakeStore) Insert(context.Context, []*catalog.Product) (int, error) {
	return 0, nil
}
func (f *fakeStore) Upsert(context.Context, []*catalog.Product) (int, error) {
	return 0, nil
}
func (f *fakeStore) Delete(context.Context, []string) (int, error) { return 0, nil }

func (f *fakeStore) DenseSearch(_ context.Context, _ []float32, limit int, _ *SearchFilter) ([]Hit, error) {
	f.denseLimit = limit
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	return f.dense, nil
}

func (f *fakeStore) SparseSearch(_ context.Context, _ string, limit int, _ *SearchFilter) ([]Hit, error) {
	f.sparseLimit = limit
	if f.sparseErr != nil {
		return nil, f.sparseErr
	}
	return f.sparse, nil
}

func (f *fakeStore) ContentHashes(context.Context) (map[string]string, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

func product(id string) *catalog.Product {
	return &catalog.Product{ID: id, Name: "product " + id}
}

func hit(id string, score float32) Hit {
	return Hit{Product: product(id), Score: score}
}

func newTestRetriever(t *testing.T, store VectorStore) *HybridRetriever {
	t.Helper()
	r, err := NewHybridRetriever(&fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("NewHybridRetriever: %v", err)
	}
	return r
}

func Test_HybridRetriever_FusesBothRankings(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		dense:  []Hit{hit("PROD-001", 0.9), hit("PROD-002", 0.8), hit("PROD-003", 0.7)},
		sparse: []Hit{hit("PROD-004", 12), hit("PROD-001", 10), hit("PROD-005", 8)},
	}
	r := newTestRetriever(t, store)

	got, err := r.Search(context.Background(), "wireless mouse", 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 products, got %d", len(got))
	}
	if got[0].ID != "PROD-001" {
		t.Errorf("expected PROD-001 ranked first, got %s", got[0].ID)
	}
}

func Test_HybridRetriever_PoolLargerThanLimit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := newTestRetriever(t, store)

	if _, err := r.Search(context.Background(), "query", 5, nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Default pool multiplier is 3.
	if store.denseLimit != 15 {
		t.Errorf("dense candidate pool = %d, want 15", store.denseLimit)
	}
	if store.sparseLimit != 15 {
		t.Errorf("sparse candidate pool = %d, want 15", store.sparseLimit)
	}
}

func Test_HybridRetriever_DenseOnlyWhenSparseFails(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		dense:     []Hit{hit("PROD-002", 0.9), hit("PROD-001", 0.8)},
		sparseErr: errors.New("sparse index offline"),
	}
	r := newTestRetriever(t, store)

	got, err := r.Search(context.Background(), "query", 2, nil)
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	if got[0].ID != "PROD-002" || got[1].ID != "PROD-001" {
		t.Errorf("dense order should be preserved, got %s, %s", got[0].ID, got[1].ID)
	}
}

func Test_HybridRetriever_DenseFailurePropagates(t *testing.T) {
	t.Parallel()

	store := &fakeStore{denseErr: errors.New("connection refused")}
	r := newTestRetriever(t, store)

	if _, err := r.Search(context.Background(), "query", 5, nil); err == nil {
		t.Fatal("expected error when dense search fails")
	}
}

func Test_HybridRetriever_EmbeddingFailurePropagates(t *testing.T) {
	t.Parallel()

	r, err := NewHybridRetriever(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeStore{}, nil)
	if err != nil {
		t.Fatalf("NewHybridRetriever: %v", err)
	}

	if _, err := r.Search(context.Background(), "query", 5, nil); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func Test_HybridRetriever_DefaultLimit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		dense: []Hit{hit("PROD-001", 0.9)},
	}
	r := newTestRetriever(t, store)

	got, err := r.Search(context.Background(), "query", 0, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 product, got %d", len(got))
	}
	// limit 0 falls back to the default of 10, pool = 30.
	if store.denseLimit != 30 {
		t.Errorf("dense candidate pool = %d, want 30", store.denseLimit)
	}
}

func Test_HybridRetriever_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewHybridRetriever(nil, &fakeStore{}, nil); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewHybridRetriever(&fakeEmbedder{}, nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
}
