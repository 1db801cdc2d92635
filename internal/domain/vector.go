package domain

import "context"

// Record is a single index entry: the source image's file name (including
// extension) and its embedding. The ID is the uniqueness key within a
// namespace; upserting the same ID replaces the stored vector.
type Record struct {
	ID     string
	Vector []float32
}

// Match is one ranked hit from a nearest-neighbor query.
type Match struct {
	ID    string
	Score float64
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// ImageEmbedder is the shared image vectorization contract between layers.
// Input is the PNG-encoded normalized canvas.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, png []byte) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
