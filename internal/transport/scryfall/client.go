// Package scryfall resolves card identifiers to metadata records via the
// Scryfall REST API. The identifier is a filename-derived card name; lookup
// uses the fuzzy named-card endpoint so minor spelling drift still resolves.
package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/cardex-io/cardex/internal/domain"
)

// DefaultBaseURL is the public Scryfall API root.
const DefaultBaseURL = "https://api.scryfall.com"

// Client fetches card metadata over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds resolver settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a Scryfall metadata client.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// card mirrors the subset of the Scryfall card object the catalog consumes.
type card struct {
	Name          string   `json:"name"`
	ManaCost      string   `json:"mana_cost"`
	CMC           float64  `json:"cmc"`
	TypeLine      string   `json:"type_line"`
	Colors        []string `json:"colors"`
	ColorIdentity []string `json:"color_identity"`
	SetName       string   `json:"set_name"`
	Rarity        string   `json:"rarity"`
	FullArt       bool     `json:"full_art"`
	Prices        struct {
		USD *string `json:"usd"`
	} `json:"prices"`
}

// Fetch resolves an identifier to a card record. A 404 from the API means no
// card matches the identifier and maps to domain.ErrCardNotFound.
func (c *Client) Fetch(ctx context.Context, identifier string) (domain.CardRecord, error) {
	u := c.baseURL + "/cards/named?fuzzy=" + url.QueryEscape(identifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.CardRecord{}, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CardRecord{}, fmt.Errorf("fetch metadata for %q: %w", identifier, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.CardRecord{}, fmt.Errorf("no card matches %q: %w", identifier, domain.ErrCardNotFound)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.CardRecord{}, fmt.Errorf("metadata lookup for %q returned %d: %s",
			identifier, resp.StatusCode, string(body))
	}

	var sc card
	if err := json.NewDecoder(resp.Body).Decode(&sc); err != nil {
		return domain.CardRecord{}, fmt.Errorf("decode metadata for %q: %w", identifier, err)
	}

	c.logger.Debug("resolved card metadata",
		zap.String("identifier", identifier),
		zap.String("name", sc.Name),
		zap.String("set", sc.SetName))

	rec := domain.CardRecord{
		ID:            identifier,
		Name:          sc.Name,
		ManaCost:      sc.ManaCost,
		CMC:           sc.CMC,
		TypeLine:      sc.TypeLine,
		Colors:        sc.Colors,
		ColorIdentity: sc.ColorIdentity,
		SetName:       sc.SetName,
		Rarity:        sc.Rarity,
		FullArt:       sc.FullArt,
	}
	if sc.Prices.USD != nil {
		rec.PriceUSD = *sc.Prices.USD
	}
	return rec, nil
}
