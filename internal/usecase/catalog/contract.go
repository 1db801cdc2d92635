package catalog

import (
	"context"

	"github.com/cardex-io/cardex/internal/domain"
)

// Resolver maps a card identifier to its metadata record.
type Resolver interface {
	Fetch(ctx context.Context, identifier string) (domain.CardRecord, error)
}

// Ledger is the persisted inventory table. Load returns the full table;
// Save rewrites it.
type Ledger interface {
	Load() ([]domain.CatalogRow, error)
	Save(rows []domain.CatalogRow) error
}
