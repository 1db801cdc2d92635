// Package index adapts the Redis vector-search capability to the record
// upsert / nearest-neighbor contract the pipelines consume. One FT index per
// namespace; records are hashes keyed cardex:{namespace}:{id}.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cardex-io/cardex/internal/db"
	"github.com/cardex-io/cardex/internal/domain"
)

// store is the consumer interface for index operations (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig carries optional HNSW build parameters for new indexes.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the vector index capability over db.Store.
type Repo struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates an index repository for vectors of the given dimension.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

// WithHNSW configures HNSW build parameters for indexes this repo creates.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// Ensure creates the namespace's FT index if it does not exist (idempotent).
func (r *Repo) Ensure(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	exists, err := r.store.IndexExists(ctx, indexName(namespace))
	if err != nil {
		return fmt.Errorf("index exists %s: %w", namespace, wrapUnavailable(err))
	}
	if exists {
		return nil
	}

	def := db.Vector(indexName(namespace), keyPrefix(namespace), "vector", r.dim, db.VectorHNSW, db.DistanceCosine)
	def.Fields[0].VectorM = r.hnsw.M
	def.Fields[0].VectorEFConstruct = r.hnsw.EFConstruct

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", namespace, wrapUnavailable(err))
	}
	return nil
}

// Upsert writes records under the namespace in one pipelined round-trip.
// A record whose ID already exists is replaced: re-ingesting a file is the
// documented re-embed-and-replace policy, not an accident of keying.
func (r *Repo) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		if len(rec.Vector) != r.dim {
			return fmt.Errorf("record %q has dim %d, index expects %d: %w",
				rec.ID, len(rec.Vector), r.dim, domain.ErrVectorDimMismatch)
		}
		items[i] = db.HashSetItem{
			Key: recordKey(namespace, rec.ID),
			Fields: map[string]string{
				"vector": vectorToBytes(rec.Vector),
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d records into %s: %w", len(records), namespace, wrapUnavailable(err))
	}
	return nil
}

// Query returns up to topK nearest neighbors by cosine similarity, descending.
func (r *Repo) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	if len(vector) != r.dim {
		return nil, fmt.Errorf("query vector has dim %d, index expects %d: %w",
			len(vector), r.dim, domain.ErrVectorDimMismatch)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(namespace),
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{"__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn query %s: %w", namespace, wrapUnavailable(err))
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	prefix := keyPrefix(namespace)
	matches := make([]domain.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		matches = append(matches, domain.Match{
			ID:    strings.TrimPrefix(entry.Key, prefix),
			Score: entry.Score,
		})
	}
	return matches, nil
}

// Stats returns the number of vectors stored under the namespace.
func (r *Repo) Stats(ctx context.Context, namespace string) (int, error) {
	if err := validateNamespace(namespace); err != nil {
		return 0, err
	}
	n, err := r.store.SearchCount(ctx, indexName(namespace), "*")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", namespace, wrapUnavailable(err))
	}
	return n, nil
}

func validateNamespace(namespace string) error {
	if !db.IsValidIdentifier(namespace) {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	return nil
}

func keyPrefix(namespace string) string {
	return domain.KeyPrefix + namespace + ":"
}

func recordKey(namespace, id string) string {
	return keyPrefix(namespace) + id
}

func indexName(namespace string) string {
	return keyPrefix(namespace) + "idx"
}

// wrapUnavailable tags store-level failures with the index-unavailable
// sentinel; callers treat these as terminal for the call in progress.
func wrapUnavailable(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return err
}
