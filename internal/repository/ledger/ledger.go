// Package ledger persists the card inventory as a CSV table. The table is
// read fully before a reconciliation and rewritten fully after it; rows are
// keyed by card identifier and never deleted here.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cardex-io/cardex/internal/domain"
)

var header = []string{
	"identifier", "name", "mana_cost", "cmc", "type_line",
	"colors", "color_identity", "set_name", "rarity", "full_art",
	"price", "number_owned", "total_value",
}

// Store reads and writes the ledger file at a fixed path.
type Store struct {
	path string
}

// New creates a ledger store backed by the CSV file at path. The file does
// not need to exist yet; Load treats a missing file as an empty ledger.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file location.
func (s *Store) Path() string { return s.path }

// Load reads the full ledger table. A missing file yields an empty ledger.
func (s *Store) Load() ([]domain.CatalogRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// First record is the header written by Save.
	rows := make([]domain.CatalogRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("ledger %s row %d: %w", s.path, i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Save rewrites the full ledger table. The write goes to a temp file in the
// same directory and is renamed over the target, so readers never observe a
// partially written table.
func (s *Store) Save(rows []domain.CatalogRow) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(formatRow(row)); err != nil {
			tmp.Close()
			return fmt.Errorf("write ledger row %s: %w", row.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func formatRow(row domain.CatalogRow) []string {
	return []string{
		row.ID,
		row.Name,
		row.ManaCost,
		strconv.FormatFloat(row.CMC, 'f', -1, 64),
		row.TypeLine,
		strings.Join(row.Colors, ","),
		strings.Join(row.ColorIdentity, ","),
		row.SetName,
		row.Rarity,
		strconv.FormatBool(row.FullArt),
		strconv.FormatFloat(row.Price, 'f', 2, 64),
		strconv.Itoa(row.NumberOwned),
		strconv.FormatFloat(row.TotalValue, 'f', 2, 64),
	}
}

func parseRow(rec []string) (domain.CatalogRow, error) {
	cmc, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("cmc %q: %w", rec[3], err)
	}
	fullArt, err := strconv.ParseBool(rec[9])
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("full_art %q: %w", rec[9], err)
	}
	price, err := strconv.ParseFloat(rec[10], 64)
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("price %q: %w", rec[10], err)
	}
	owned, err := strconv.Atoi(rec[11])
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("number_owned %q: %w", rec[11], err)
	}
	total, err := strconv.ParseFloat(rec[12], 64)
	if err != nil {
		return domain.CatalogRow{}, fmt.Errorf("total_value %q: %w", rec[12], err)
	}

	return domain.CatalogRow{
		ID:            rec[0],
		Name:          rec[1],
		ManaCost:      rec[2],
		CMC:           cmc,
		TypeLine:      rec[4],
		Colors:        splitList(rec[5]),
		ColorIdentity: splitList(rec[6]),
		SetName:       rec[7],
		Rarity:        rec[8],
		FullArt:       fullArt,
		Price:         price,
		NumberOwned:   owned,
		TotalValue:    total,
	}, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
