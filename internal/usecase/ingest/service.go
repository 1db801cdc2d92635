// Package ingest walks a directory of card images and loads them into the
// vector index: normalize, embed, accumulate into fixed-size batches, upsert
// each full batch plus the final partial one. A failure on one image never
// aborts the rest of the corpus; a failed batch flush does.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cardex-io/cardex/internal/domain"
	"github.com/cardex-io/cardex/internal/imaging"
	"github.com/cardex-io/cardex/internal/metrics"
)

// Failure records one image that could not be embedded.
type Failure struct {
	File string
	Err  error
}

// Report summarizes one ingestion run.
type Report struct {
	Embedded int
	Upserted int
	Failed   int
	Failures []Failure
}

// Service is the batch ingestion pipeline.
type Service struct {
	embedder   Embedder
	index      Index
	targetSize int
	batchSize  int
	logger     *zap.Logger
}

// New creates an ingestion service with default image size and batch size.
func New(embedder Embedder, index Index, logger *zap.Logger) *Service {
	return &Service{
		embedder:   embedder,
		index:      index,
		targetSize: domain.DefaultTargetSize,
		batchSize:  domain.DefaultBatchSize,
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

// WithBatchSize overrides how many records accumulate before an upsert.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Run ingests every image file in dir into the namespace. Files are processed
// in lexicographic filename order so batch boundaries are reproducible. The
// returned report is valid even when err != nil: it covers everything that
// completed before the terminal failure.
func (s *Service) Run(ctx context.Context, namespace, dir string) (Report, error) {
	var report Report

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read image directory: %w", err)
	}

	if err := s.index.Ensure(ctx, namespace); err != nil {
		return report, fmt.Errorf("ensure index %s: %w", namespace, err)
	}

	batch := make([]domain.Record, 0, s.batchSize)
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		vec, err := s.embedFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{File: entry.Name(), Err: err})
			metrics.IngestItemsTotal.WithLabelValues(namespace, "failed").Inc()
			s.logger.Warn("skipping image",
				zap.String("namespace", namespace),
				zap.String("file", entry.Name()),
				zap.Error(err))
			continue
		}

		report.Embedded++
		metrics.IngestItemsTotal.WithLabelValues(namespace, "embedded").Inc()
		batch = append(batch, domain.Record{ID: entry.Name(), Vector: vec})

		if len(batch) == s.batchSize {
			if err := s.flush(ctx, namespace, batch, &report); err != nil {
				return report, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.flush(ctx, namespace, batch, &report); err != nil {
			return report, err
		}
	}

	s.logger.Info("ingestion complete",
		zap.String("namespace", namespace),
		zap.Int("embedded", report.Embedded),
		zap.Int("upserted", report.Upserted),
		zap.Int("failed", report.Failed))

	return report, nil
}

// embedFile reads, normalizes, and embeds one image.
func (s *Service) embedFile(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	png, err := imaging.EncodePNG(imaging.Normalize(img, s.targetSize))
	if err != nil {
		return nil, err
	}

	result, err := s.embedder.EmbedImage(ctx, png)
	if err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

// flush upserts one accumulated batch. Errors here are terminal for the run:
// the index rejected a write, so pushing more batches would only widen the gap
// between what was embedded and what is queryable.
func (s *Service) flush(ctx context.Context, namespace string, batch []domain.Record, report *Report) error {
	start := time.Now()
	if err := s.index.Upsert(ctx, namespace, batch); err != nil {
		return fmt.Errorf("flush batch of %d: %w", len(batch), err)
	}
	metrics.IngestBatchesFlushedTotal.WithLabelValues(namespace).Inc()
	metrics.IngestBatchFlushDuration.WithLabelValues(namespace).Observe(time.Since(start).Seconds())

	report.Upserted += len(batch)
	s.logger.Debug("flushed batch",
		zap.String("namespace", namespace),
		zap.Int("size", len(batch)))
	return nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
