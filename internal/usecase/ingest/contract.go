package ingest

import (
	"context"

	"github.com/cardex-io/cardex/internal/domain"
)

// Embedder vectorizes normalized card images.
type Embedder interface {
	EmbedImage(ctx context.Context, png []byte) (domain.EmbeddingResult, error)
}

// Index is the write side of the vector index capability.
type Index interface {
	Ensure(ctx context.Context, namespace string) error
	Upsert(ctx context.Context, namespace string, records []domain.Record) error
}
