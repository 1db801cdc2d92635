// Package cardex identifies trading cards from photos and tracks them in an
// inventory ledger. It embeds card images with an OpenAI-compatible
// multimodal model, stores the vectors in Redis, and resolves identified
// cards to metadata and prices for the catalog.
package cardex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	dbredis "github.com/cardex-io/cardex/internal/db/redis"
	"github.com/cardex-io/cardex/internal/domain"
	indexrepo "github.com/cardex-io/cardex/internal/repository/index"
	ledgerrepo "github.com/cardex-io/cardex/internal/repository/ledger"
	"github.com/cardex-io/cardex/internal/transport/openai"
	"github.com/cardex-io/cardex/internal/transport/scryfall"
	cataloguc "github.com/cardex-io/cardex/internal/usecase/catalog"
	identifyuc "github.com/cardex-io/cardex/internal/usecase/identify"
	ingestuc "github.com/cardex-io/cardex/internal/usecase/ingest"
)

const defaultReadinessTimeout = 10 * time.Second

// Match is one identification candidate.
type Match struct {
	Identifier string
	Score      float64
}

// ItemFailure records one image that could not be ingested.
type ItemFailure struct {
	File string
	Err  error
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Embedded int
	Upserted int
	Failed   int
	Failures []ItemFailure
}

// CatalogRow is one inventory ledger entry.
type CatalogRow struct {
	Identifier    string
	Name          string
	ManaCost      string
	CMC           float64
	TypeLine      string
	Colors        []string
	ColorIdentity []string
	SetName       string
	Rarity        string
	FullArt       bool
	Price         float64
	NumberOwned   int
	TotalValue    float64
}

// Client is the cardex entry point.
type Client struct {
	store       *dbredis.Store
	namespace   string
	ingestSvc   *ingestuc.Service
	identifySvc *identifyuc.Service
	catalogSvc  *cataloguc.Service
	indexRepo   *indexrepo.Repo
}

// New creates a cardex Client and connects to Redis.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: domain.DefaultVectorConfig().Dimensions,
		namespace:        "cards",
		ledgerPath:       "ledger.csv",
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("cardex: redis address required (use WithRedis)")
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	store, err := dbredis.NewStore(dbredis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("cardex: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("cardex: redis not ready: %w", err)
	}

	return wireClient(store, cfg)
}

func wireClient(store *dbredis.Store, cfg *clientConfig) (*Client, error) {
	repo := indexrepo.New(store, cfg.vectorDimensions)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		repo = repo.WithHNSW(indexrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	ingestSvc := ingestuc.New(emb, repo, cfg.logger).
		WithTargetSize(cfg.targetSize).
		WithBatchSize(cfg.batchSize)
	identifySvc := identifyuc.New(emb, repo, cfg.logger).
		WithTargetSize(cfg.targetSize).
		WithTopK(cfg.topK)

	resolver := scryfall.NewClient(&scryfall.Config{
		BaseURL: cfg.scryfallBaseURL,
		Logger:  cfg.logger,
	})
	catalogSvc := cataloguc.New(resolver, ledgerrepo.New(cfg.ledgerPath), cfg.logger)

	return &Client{
		store:       store,
		namespace:   cfg.namespace,
		ingestSvc:   ingestSvc,
		identifySvc: identifySvc,
		catalogSvc:  catalogSvc,
		indexRepo:   repo,
	}, nil
}

func buildEmbedder(cfg *clientConfig) (domain.ImageEmbedder, error) {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}, nil
	}
	if cfg.embeddingBaseURL != "" {
		return openai.NewEmbedder(&openai.Config{
			APIKey:     cfg.embeddingAPIKey,
			BaseURL:    cfg.embeddingBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.vectorDimensions,
			Provider:   "openai",
			Logger:     cfg.logger,
		}), nil
	}
	return noopEmbedder{}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ingest loads every image in dir into the vector index.
func (c *Client) Ingest(ctx context.Context, dir string) (IngestReport, error) {
	report, err := c.ingestSvc.Run(ctx, c.namespace, dir)
	return ingestReportFrom(report), err
}

// Identify returns ranked candidate identifiers for a query image. topK <= 0
// uses the WithTopK default.
func (c *Client) Identify(ctx context.Context, image io.Reader, topK int) ([]Match, error) {
	matches, err := c.identifySvc.Identify(ctx, c.namespace, image, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = Match{Identifier: m.ID, Score: m.Score}
	}
	return out, nil
}

// Reconcile merges one sighting of an identified card into the ledger.
func (c *Client) Reconcile(ctx context.Context, identifier string) (CatalogRow, error) {
	row, err := c.catalogSvc.Reconcile(ctx, identifier)
	if err != nil {
		return CatalogRow{}, err
	}
	return catalogRowFrom(row), nil
}

// Catalog returns the full ledger and its aggregate value.
func (c *Client) Catalog(ctx context.Context) ([]CatalogRow, float64, error) {
	rows, total, err := c.catalogSvc.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]CatalogRow, len(rows))
	for i, row := range rows {
		out[i] = catalogRowFrom(row)
	}
	return out, total, nil
}

// Stats returns the number of vectors in the client's namespace.
func (c *Client) Stats(ctx context.Context) (int, error) {
	return c.indexRepo.Stats(ctx, c.namespace)
}

func ingestReportFrom(r ingestuc.Report) IngestReport {
	out := IngestReport{
		Embedded: r.Embedded,
		Upserted: r.Upserted,
		Failed:   r.Failed,
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, ItemFailure{File: f.File, Err: f.Err})
	}
	return out
}

func catalogRowFrom(row domain.CatalogRow) CatalogRow {
	return CatalogRow{
		Identifier:    row.ID,
		Name:          row.Name,
		ManaCost:      row.ManaCost,
		CMC:           row.CMC,
		TypeLine:      row.TypeLine,
		Colors:        row.Colors,
		ColorIdentity: row.ColorIdentity,
		SetName:       row.SetName,
		Rarity:        row.Rarity,
		FullArt:       row.FullArt,
		Price:         row.Price,
		NumberOwned:   row.NumberOwned,
		TotalValue:    row.TotalValue,
	}
}

// embedderAdapter wraps the public Embedder to satisfy domain.ImageEmbedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) EmbedImage(ctx context.Context, png []byte) (domain.EmbeddingResult, error) {
	r, err := a.inner.EmbedImage(ctx, png)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed image: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on EmbedImage (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) EmbedImage(_ context.Context, _ []byte) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"cardex: embedder not configured (use WithEmbedder or WithOpenAIEmbedding)",
	)
}
