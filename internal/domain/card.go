package domain

import (
	"fmt"
	"strconv"
)

// CardRecord is an immutable metadata snapshot for one card, keyed by the
// identifier used to resolve it (an index record ID with its file extension
// stripped).
type CardRecord struct {
	ID            string
	Name          string
	ManaCost      string
	CMC           float64
	TypeLine      string
	Colors        []string
	ColorIdentity []string
	SetName       string
	Rarity        string
	FullArt       bool
	PriceUSD      string // nullable numeric string as reported upstream
}

// Price parses the record's USD price. An absent or non-numeric price is a
// terminal condition for reconciliation: recording zero instead would corrupt
// aggregate totals.
func (c CardRecord) Price() (float64, error) {
	if c.PriceUSD == "" {
		return 0, fmt.Errorf("card %q has no price: %w", c.ID, ErrPriceUnavailable)
	}
	p, err := strconv.ParseFloat(c.PriceUSD, 64)
	if err != nil {
		return 0, fmt.Errorf("card %q price %q: %w", c.ID, c.PriceUSD, ErrPriceUnavailable)
	}
	return p, nil
}

// CatalogRow is one persisted ledger entry. Invariant after every merge:
// TotalValue == float64(NumberOwned) * Price.
type CatalogRow struct {
	ID            string
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

// NewCatalogRow creates the first-sighting row for a card.
func NewCatalogRow(rec CardRecord, price float64) CatalogRow {
	return CatalogRow{
		ID:            rec.ID,
		Name:          rec.Name,
		ManaCost:      rec.ManaCost,
		CMC:           rec.CMC,
		TypeLine:      rec.TypeLine,
		Colors:        rec.Colors,
		ColorIdentity: rec.ColorIdentity,
		SetName:       rec.SetName,
		Rarity:        rec.Rarity,
		FullArt:       rec.FullArt,
		Price:         price,
		NumberOwned:   1,
		TotalValue:    price,
	}
}

// AddCopy records another owned copy. The unit price is refreshed to the
// latest observed value (last-write-wins) and the total is recomputed.
func (r *CatalogRow) AddCopy(price float64) {
	r.NumberOwned++
	r.Price = price
	r.TotalValue = float64(r.NumberOwned) * price
}
