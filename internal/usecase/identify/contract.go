package identify

import (
	"context"

	"github.com/cardex-io/cardex/internal/domain"
)

// Embedder vectorizes normalized card images.
type Embedder interface {
	EmbedImage(ctx context.Context, png []byte) (domain.EmbeddingResult, error)
}

// Index is the read side of the vector index capability.
type Index interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error)
}
