package index

import (
	"context"
	"errors"
	"testing"

	"github.com/cardex-io/cardex/internal/db"
	"github.com/cardex-io/cardex/internal/domain"
)

func TestEnsure_CreatesMissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t, 4)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.Ensure(context.Background(), "cards"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected CreateIndex call")
	}
	if created.Name != "cardex:cards:idx" {
		t.Errorf("index name = %q", created.Name)
	}
	if created.Fields[0].VectorDim != 4 {
		t.Errorf("dim = %d, want 4", created.Fields[0].VectorDim)
	}
}

func TestEnsure_ExistingIndexIsNoop(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return true, nil }
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		t.Fatal("CreateIndex must not be called")
		return nil
	}

	if err := repo.Ensure(context.Background(), "cards"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsure_RaceOnCreateIsIdempotent(t *testing.T) {
	repo, ms := newTestRepo(t, 4)
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		return db.ErrIndexExists
	}

	if err := repo.Ensure(context.Background(), "cards"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsert_KeysRecordsByNamespaceAndID(t *testing.T) {
	repo, ms := newTestRepo(t, 2)

	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, got []db.HashSetItem) error {
		items = got
		return nil
	}

	records := []domain.Record{
		{ID: "black-lotus.jpg", Vector: []float32{0.1, 0.2}},
		{ID: "mox-emerald.jpg", Vector: []float32{0.3, 0.4}},
	}
	if err := repo.Upsert(context.Background(), "cards", records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Key != "cardex:cards:black-lotus.jpg" {
		t.Errorf("unexpected key: %s", items[0].Key)
	}
	if len(items[0].Fields["vector"]) != 8 {
		t.Errorf("vector blob is %d bytes, want 8", len(items[0].Fields["vector"]))
	}
}

func TestUpsert_EmptyBatchIsNoop(t *testing.T) {
	repo, ms := newTestRepo(t, 2)
	ms.hsetMultiFn = func(context.Context, []db.HashSetItem) error {
		t.Fatal("HSetMulti must not be called")
		return nil
	}
	if err := repo.Upsert(context.Background(), "cards", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsert_DimMismatch(t *testing.T) {
	repo, _ := newTestRepo(t, 1280)
	err := repo.Upsert(context.Background(), "cards", []domain.Record{
		{ID: "a.jpg", Vector: []float32{1, 2}},
	})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestUpsert_StoreErrorIsUnavailable(t *testing.T) {
	repo, ms := newTestRepo(t, 2)
	ms.hsetMultiFn = func(context.Context, []db.HashSetItem) error {
		return &db.Error{Op: db.OpHSet, Err: context.DeadlineExceeded}
	}
	err := repo.Upsert(context.Background(), "cards", []domain.Record{
		{ID: "a.jpg", Vector: []float32{1, 2}},
	})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestQuery_StripsKeyPrefix(t *testing.T) {
	repo, ms := newTestRepo(t, 2)
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "cardex:cards:idx" {
			t.Errorf("index name = %q", q.IndexName)
		}
		if q.K != 3 {
			t.Errorf("k = %d, want 3", q.K)
		}
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: "cardex:cards:black-lotus.jpg", Score: 0.97},
				{Key: "cardex:cards:mox-emerald.jpg", Score: 0.61},
			},
		}, nil
	}

	matches, err := repo.Query(context.Background(), "cards", []float32{0.5, 0.5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "black-lotus.jpg" || matches[0].Score != 0.97 {
		t.Errorf("unexpected top match: %+v", matches[0])
	}
}

func TestQuery_DimMismatch(t *testing.T) {
	repo, _ := newTestRepo(t, 1280)
	_, err := repo.Query(context.Background(), "cards", []float32{1}, 5)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestQuery_Unavailable(t *testing.T) {
	repo, ms := newTestRepo(t, 2)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: context.DeadlineExceeded}
	}
	_, err := repo.Query(context.Background(), "cards", testVector(2), 5)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestStats(t *testing.T) {
	repo, ms := newTestRepo(t, 2)
	ms.searchCountFn = func(_ context.Context, index, query string) (int, error) {
		if index != "cardex:cards:idx" || query != "*" {
			t.Errorf("unexpected count args: %s %s", index, query)
		}
		return 7, nil
	}
	n, err := repo.Stats(context.Background(), "cards")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
}

func TestInvalidNamespace(t *testing.T) {
	repo, _ := newTestRepo(t, 2)
	if err := repo.Ensure(context.Background(), "bad namespace"); err == nil {
		t.Error("Ensure: expected error")
	}
	if err := repo.Upsert(context.Background(), "", nil); err == nil {
		t.Error("Upsert: expected error")
	}
	if _, err := repo.Query(context.Background(), "bad ns", testVector(2), 1); err == nil {
		t.Error("Query: expected error")
	}
	if _, err := repo.Stats(context.Background(), "bad ns"); err == nil {
		t.Error("Stats: expected error")
	}
}
