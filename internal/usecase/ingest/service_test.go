package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/cardex-io/cardex/internal/domain"
)

func TestRun_BatchBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		images    int
		batchSize int
		wantSizes []int
	}{
		{"three images batch two", 3, 2, []int{2, 1}},
		{"exact multiple", 4, 2, []int{2, 2}},
		{"single partial batch", 3, 5, []int{3}},
		{"batch of one", 2, 1, []int{1, 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for i := 0; i < tc.images; i++ {
				writeTestImage(t, dir, string(rune('a'+i))+".png")
			}

			svc, _, idx := newTestService(t)
			svc.WithBatchSize(tc.batchSize)

			report, err := svc.Run(context.Background(), "cards", dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if report.Embedded != tc.images || report.Upserted != tc.images {
				t.Errorf("report = %+v", report)
			}
			if len(idx.upserts) != len(tc.wantSizes) {
				t.Fatalf("expected %d upsert calls, got %d", len(tc.wantSizes), len(idx.upserts))
			}
			for i, want := range tc.wantSizes {
				if len(idx.upserts[i]) != want {
					t.Errorf("batch %d has %d records, want %d", i, len(idx.upserts[i]), want)
				}
			}
		})
	}
}

func TestRun_LexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"charizard.png", "abra.png", "bulbasaur.png"} {
		writeTestImage(t, dir, name)
	}

	svc, _, idx := newTestService(t)
	svc.WithBatchSize(3)

	if _, err := svc.Run(context.Background(), "cards", dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.upserts) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(idx.upserts))
	}
	got := idx.upserts[0]
	want := []string{"abra.png", "bulbasaur.png", "charizard.png"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("record %d = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestRun_CorruptImageDoesNotCascade(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "a.png")
	writeCorruptImage(t, dir, "b.jpg")
	writeTestImage(t, dir, "c.png")

	svc, _, idx := newTestService(t)
	svc.WithBatchSize(2)

	report, err := svc.Run(context.Background(), "cards", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Embedded != 2 || report.Upserted != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.Failed != 1 || len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", report.Failures)
	}
	if report.Failures[0].File != "b.jpg" {
		t.Errorf("failure file = %q", report.Failures[0].File)
	}
	if !errors.Is(report.Failures[0].Err, domain.ErrImageDecode) {
		t.Errorf("failure err = %v", report.Failures[0].Err)
	}

	var total int
	for _, batch := range idx.upserts {
		total += len(batch)
	}
	if total != 2 {
		t.Errorf("upserted %d records, want 2", total)
	}
}

func TestRun_EmbedFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "a.png")
	writeTestImage(t, dir, "b.png")

	svc, emb, idx := newTestService(t)
	svc.WithBatchSize(2)

	calls := 0
	emb.embedFn = func(context.Context, []byte) (domain.EmbeddingResult, error) {
		calls++
		if calls == 1 {
			return domain.EmbeddingResult{}, domain.ErrEmbeddingProvider
		}
		return domain.EmbeddingResult{Embedding: []float32{1, 2}}, nil
	}

	report, err := svc.Run(context.Background(), "cards", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Embedded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(idx.upserts) != 1 || idx.upserts[0][0].ID != "b.png" {
		t.Errorf("upserts = %+v", idx.upserts)
	}
}

func TestRun_FlushFailureIsTerminal(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeTestImage(t, dir, name)
	}

	svc, _, idx := newTestService(t)
	svc.WithBatchSize(2)
	idx.upsertFn = func(_ context.Context, _ string, records []domain.Record) error {
		return domain.ErrIndexUnavailable
	}

	report, err := svc.Run(context.Background(), "cards", dir)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	// First batch fills after two embeds, then the flush fails.
	if report.Embedded != 2 {
		t.Errorf("embedded = %d, want 2", report.Embedded)
	}
	if report.Upserted != 0 {
		t.Errorf("upserted = %d, want 0", report.Upserted)
	}
}

func TestRun_EnsureFailure(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "a.png")

	svc, _, idx := newTestService(t)
	idx.ensureFn = func(context.Context, string) error {
		return domain.ErrIndexUnavailable
	}

	_, err := svc.Run(context.Background(), "cards", dir)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestRun_SkipsNonImageEntries(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, dir, "a.png")
	writeCorruptImage(t, dir, "notes.txt")

	svc, _, _ := newTestService(t)
	report, err := svc.Run(context.Background(), "cards", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Embedded != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Run(context.Background(), "cards", "/no/such/dir"); err == nil {
		t.Error("expected error")
	}
}
