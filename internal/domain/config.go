package domain

// KeyPrefix namespaces every Redis key written by cardex.
const KeyPrefix = "cardex:"

// VectorConfig holds embedding vector parameters shared across layers.
type VectorConfig struct {
	Dimensions int
}

// DefaultVectorConfig returns vector parameters for the default embedding
// model (EfficientNet-style 1280-dim image embeddings).
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{Dimensions: 1280}
}

// Pipeline defaults.
const (
	// DefaultTargetSize is the normalized canvas edge length in pixels.
	DefaultTargetSize = 224
	// DefaultBatchSize is the ingest flush threshold.
	DefaultBatchSize = 32
	// DefaultTopK is the identification candidate count.
	DefaultTopK = 5
)
