// Batch ingest pipeline for cardex. Walks a directory of card scans,
// embeds each image and upserts the vectors into Redis through the cardex
// SDK. Optionally reconciles every ingested card into the inventory ledger.
//
// Usage:
//
//	cardex-loader -dir ./scans -namespace cards -batch-size 32
//
// Env vars:
//
//	REDIS_ADDR         — Redis address (default: localhost:6379)
//	REDIS_PASSWORD     — Redis password
//	EMBEDDING_BASE_URL — OpenAI-compatible embeddings endpoint
//	EMBEDDING_API_KEY  — embeddings API key
//	EMBEDDING_MODEL    — embeddings model name
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cardex-io/cardex"
)

func main() {
	cfg := parseFlags()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		cancel()
		log.Fatal(err)
	}
}

type config struct {
	dir        string
	namespace  string
	batchSize  int
	targetSize int
	dimensions int
	ledgerPath string
	reconcile  bool
}

func parseFlags() config {
	cfg := config{}
	flag.StringVar(&cfg.dir, "dir", "", "directory of card images to ingest (required)")
	flag.StringVar(&cfg.namespace, "namespace", "cards", "vector index namespace")
	flag.IntVar(&cfg.batchSize, "batch-size", 32, "embeddings per upsert batch")
	flag.IntVar(&cfg.targetSize, "target-size", 224, "square side images are normalized to")
	flag.IntVar(&cfg.dimensions, "dimensions", 1280, "embedding vector dimensions")
	flag.StringVar(&cfg.ledgerPath, "ledger", "ledger.csv", "inventory ledger CSV path")
	flag.BoolVar(&cfg.reconcile, "reconcile", false, "record each ingested card in the ledger")
	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg config) error {
	if cfg.dir == "" {
		return fmt.Errorf("-dir is required")
	}
	start := time.Now()

	client, err := connect(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Printf("=== Stage 1: Ingest %s ===", cfg.dir)
	report, err := client.Ingest(ctx, cfg.dir)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	for _, f := range report.Failures {
		log.Printf("  failed %s: %v", f.File, f.Err)
	}
	log.Printf("ingest done: %d embedded, %d upserted, %d failed",
		report.Embedded, report.Upserted, report.Failed)

	if cfg.reconcile {
		if err := stageReconcile(ctx, client, cfg.dir, report); err != nil {
			return err
		}
	}

	stageReport(ctx, client, report, start)
	return nil
}

func connect(cfg config) (*cardex.Client, error) {
	addr := env("REDIS_ADDR", "localhost:6379")
	password := env("REDIS_PASSWORD", "")

	opts := []cardex.Option{
		cardex.WithRedis(addr, password),
		cardex.WithNamespace(cfg.namespace),
		cardex.WithBatchSize(cfg.batchSize),
		cardex.WithTargetSize(cfg.targetSize),
		cardex.WithVectorDimensions(cfg.dimensions),
		cardex.WithLedgerPath(cfg.ledgerPath),
	}
	if baseURL := os.Getenv("EMBEDDING_BASE_URL"); baseURL != "" {
		opts = append(opts, cardex.WithOpenAIEmbedding(
			baseURL,
			os.Getenv("EMBEDDING_API_KEY"),
			os.Getenv("EMBEDDING_MODEL"),
		))
	}

	client, err := cardex.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("cardex connect: %w", err)
	}
	return client, nil
}

// stageReconcile records every image that made it into the index. Files
// that failed ingestion are skipped; metadata lookup failures do not stop
// the run.
func stageReconcile(ctx context.Context, client *cardex.Client, dir string, report cardex.IngestReport) error {
	log.Println("=== Stage 2: Reconcile ===")

	failed := make(map[string]bool, len(report.Failures))
	for _, f := range report.Failures {
		failed[f.File] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	var recorded, skipped int
	for _, e := range entries {
		if e.IsDir() || failed[e.Name()] || !isImage(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := client.Reconcile(ctx, e.Name())
		if err != nil {
			log.Printf("  skip %s: %v", e.Name(), err)
			skipped++
			continue
		}
		log.Printf("  %s: %d owned, $%.2f", row.Name, row.NumberOwned, row.TotalValue)
		recorded++
	}

	log.Printf("reconcile done: %d recorded, %d skipped", recorded, skipped)
	return nil
}

func stageReport(ctx context.Context, client *cardex.Client, report cardex.IngestReport, start time.Time) {
	log.Println("=== Stage 3: Report ===")

	count, _ := client.Stats(ctx)
	elapsed := time.Since(start)

	log.Printf("DONE in %s", elapsed.Round(time.Second))
	log.Printf("  vectors in index: %d", count)
	log.Printf("  this run: %d embedded, %d failed", report.Embedded, report.Failed)
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
