// Package catalog merges identified cards into the persisted inventory
// ledger. Each reconciliation resolves metadata, parses the current price,
// and either creates a row or increments an existing one, keeping the
// total-value invariant intact.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cardex-io/cardex/internal/domain"
)

// Service owns the ledger's in-memory representation for the duration of one
// reconciliation call.
type Service struct {
	resolver Resolver
	ledger   Ledger
	logger   *zap.Logger
}

// New creates a catalog service.
func New(resolver Resolver, ledger Ledger, logger *zap.Logger) *Service {
	return &Service{
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
	}
}

// Reconcile merges one sighting of an index record into the ledger and
// returns the resulting row. The identifier used for metadata lookup and
// ledger keying is the index record ID with its file extension stripped.
// A card without a parseable price rejects the merge: recording zero value
// would corrupt aggregate totals.
func (s *Service) Reconcile(ctx context.Context, indexID string) (domain.CatalogRow, error) {
	identifier := stripExtension(indexID)
	if identifier == "" {
		return domain.CatalogRow{}, fmt.Errorf("empty identifier from %q", indexID)
	}

	rec, err := s.resolver.Fetch(ctx, identifier)
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("resolve %q: %w", identifier, err)
	}

	price, err := rec.Price()
	if err != nil {
		return domain.CatalogRow{}, err
	}

	rows, err := s.ledger.Load()
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("load ledger: %w", err)
	}

	merged := -1
	for i := range rows {
		if rows[i].ID == identifier {
			rows[i].AddCopy(price)
			merged = i
			break
		}
	}
	if merged == -1 {
		rows = append(rows, domain.NewCatalogRow(rec, price))
		merged = len(rows) - 1
	}

	if err := s.ledger.Save(rows); err != nil {
		return domain.CatalogRow{}, fmt.Errorf("save ledger: %w", err)
	}

	row := rows[merged]
	s.logger.Info("reconciled card",
		zap.String("identifier", identifier),
		zap.Int("number_owned", row.NumberOwned),
		zap.Float64("total_value", row.TotalValue))

	return row, nil
}

// List returns the full ledger with the aggregate value of all rows.
func (s *Service) List(ctx context.Context) ([]domain.CatalogRow, float64, error) {
	rows, err := s.ledger.Load()
	if err != nil {
		return nil, 0, fmt.Errorf("load ledger: %w", err)
	}

	var total float64
	for _, row := range rows {
		total += row.TotalValue
	}
	return rows, total, nil
}

func stripExtension(id string) string {
	return strings.TrimSuffix(id, filepath.Ext(id))
}
