package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/cardex-io/cardex/internal/domain"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, png []byte) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) EmbedImage(ctx context.Context, png []byte) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, png)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 2}}, nil
}

type mockIndex struct {
	ensureFn func(ctx context.Context, namespace string) error
	upsertFn func(ctx context.Context, namespace string, records []domain.Record) error

	upserts [][]domain.Record
}

func (m *mockIndex) Ensure(ctx context.Context, namespace string) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, namespace)
	}
	return nil
}

func (m *mockIndex) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, namespace, records); err != nil {
			return err
		}
	}
	batch := make([]domain.Record, len(records))
	copy(batch, records)
	m.upserts = append(m.upserts, batch)
	return nil
}

func newTestService(t *testing.T) (*Service, *mockEmbedder, *mockIndex) {
	t.Helper()
	emb := &mockEmbedder{}
	idx := &mockIndex{}
	svc := New(emb, idx, zap.NewNop()).WithTargetSize(16)
	return svc, emb, idx
}

// writeTestImage writes a small valid PNG to dir.
func writeTestImage(t *testing.T, dir, name string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test image: %v", err)
	}
}

// writeCorruptImage writes a file with an image extension but no image data.
func writeCorruptImage(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write corrupt image: %v", err)
	}
}
