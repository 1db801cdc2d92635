package cardex

import (
	"context"

	"go.uber.org/zap"
)

// EmbeddingResult is the output of one image embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes normalized card images. Implement this to plug in a
// custom embedding provider; WithOpenAIEmbedding covers the common case.
type Embedder interface {
	EmbedImage(ctx context.Context, png []byte) (EmbeddingResult, error)
}

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	password string

	embedder         Embedder
	embeddingBaseURL string
	embeddingAPIKey  string
	embeddingModel   string

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int

	namespace  string
	batchSize  int
	targetSize int
	topK       int

	ledgerPath      string
	scryfallBaseURL string

	logger *zap.Logger
}

// WithRedis sets the Redis connection address.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithEmbedder sets a custom image embedding provider.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithOpenAIEmbedding configures an OpenAI-compatible image embedding
// provider (base64 data-URI input).
func WithOpenAIEmbedding(baseURL, apiKey, model string) Option {
	return func(c *clientConfig) {
		c.embeddingBaseURL = baseURL
		c.embeddingAPIKey = apiKey
		c.embeddingModel = model
	}
}

// WithVectorDimensions sets the embedding dimension (default 1280).
func WithVectorDimensions(dim int) Option {
	return func(c *clientConfig) {
		c.vectorDimensions = dim
	}
}

// WithHNSW sets HNSW build parameters for new indexes.
func WithHNSW(m, efConstruct int) Option {
	return func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	}
}

// WithNamespace sets the index namespace (default "cards").
func WithNamespace(ns string) Option {
	return func(c *clientConfig) {
		c.namespace = ns
	}
}

// WithBatchSize sets how many embeddings accumulate before an upsert
// during ingestion (default 32).
func WithBatchSize(n int) Option {
	return func(c *clientConfig) {
		c.batchSize = n
	}
}

// WithTargetSize sets the square side images are normalized to (default 224).
func WithTargetSize(size int) Option {
	return func(c *clientConfig) {
		c.targetSize = size
	}
}

// WithTopK sets the default candidate count for identification queries
// that do not name one (default 5).
func WithTopK(k int) Option {
	return func(c *clientConfig) {
		c.topK = k
	}
}

// WithLedgerPath sets the inventory ledger CSV location (default "ledger.csv").
func WithLedgerPath(path string) Option {
	return func(c *clientConfig) {
		c.ledgerPath = path
	}
}

// WithScryfallBaseURL overrides the metadata API root.
func WithScryfallBaseURL(u string) Option {
	return func(c *clientConfig) {
		c.scryfallBaseURL = u
	}
}

// WithLogger sets the logger (default zap.NewNop()).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
