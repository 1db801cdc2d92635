// Package identify answers "which card is this" for a single query image:
// normalize, embed, then rank the namespace's nearest neighbors by cosine
// similarity.
package identify

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/cardex-io/cardex/internal/domain"
	"github.com/cardex-io/cardex/internal/imaging"
)

// Service runs identification queries against the vector index.
type Service struct {
	embedder   Embedder
	index      Index
	targetSize int
	topK       int
	logger     *zap.Logger
}

// New creates an identification service with default image size and top-k.
func New(embedder Embedder, index Index, logger *zap.Logger) *Service {
	return &Service{
		embedder:   embedder,
		index:      index,
		targetSize: domain.DefaultTargetSize,
		topK:       domain.DefaultTopK,
		logger:     logger,
	}
}

// WithTargetSize overrides the square side images are normalized to.
func (s *Service) WithTargetSize(size int) *Service {
	if size > 0 {
		s.targetSize = size
	}
	return s
}

// WithTopK overrides the default candidate count for queries that do not
// name one.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// Identify returns up to topK candidate identifiers for the query image,
// ranked by similarity descending. topK <= 0 falls back to the service
// default. An empty result means the namespace holds no vectors, not an
// error.
func (s *Service) Identify(ctx context.Context, namespace string, image io.Reader, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = s.topK
	}
	img, err := imaging.Decode(image)
	if err != nil {
		return nil, err
	}

	png, err := imaging.EncodePNG(imaging.Normalize(img, s.targetSize))
	if err != nil {
		return nil, err
	}

	result, err := s.embedder.EmbedImage(ctx, png)
	if err != nil {
		return nil, fmt.Errorf("embed query image: %w", err)
	}

	matches, err := s.index.Query(ctx, namespace, result.Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("query index %s: %w", namespace, err)
	}

	// KNN reply order is not guaranteed by the server.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	s.logger.Debug("identification query",
		zap.String("namespace", namespace),
		zap.Int("candidates", len(matches)))

	return matches, nil
}
