package scryfall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/cardex-io/cardex/internal/domain"
)

const lotusJSON = `{
	"name": "Black Lotus",
	"mana_cost": "{0}",
	"cmc": 0,
	"type_line": "Artifact",
	"colors": [],
	"color_identity": [],
	"set_name": "Limited Edition Alpha",
	"rarity": "rare",
	"full_art": false,
	"prices": {"usd": "14.25"}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Config{BaseURL: server.URL, Logger: zap.NewNop()}), server
}

func TestFetch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/named" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("fuzzy"); got != "black-lotus" {
			t.Errorf("fuzzy = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lotusJSON))
	})

	rec, err := client.Fetch(context.Background(), "black-lotus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "black-lotus" {
		t.Errorf("ID = %q, want requested identifier", rec.ID)
	}
	if rec.Name != "Black Lotus" || rec.SetName != "Limited Edition Alpha" {
		t.Errorf("unexpected record: %+v", rec)
	}
	price, err := rec.Price()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price != 14.25 {
		t.Errorf("price = %f, want 14.25", price)
	}
}

func TestFetch_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","code":"not_found"}`))
	})

	_, err := client.Fetch(context.Background(), "no-such-card")
	if !errors.Is(err, domain.ErrCardNotFound) {
		t.Errorf("expected ErrCardNotFound, got %v", err)
	}
}

func TestFetch_NullPrice(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Ornithopter","prices":{"usd":null}}`))
	})

	rec, err := client.Fetch(context.Background(), "ornithopter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.PriceUSD != "" {
		t.Errorf("PriceUSD = %q, want empty", rec.PriceUSD)
	}
	if _, err := rec.Price(); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestFetch_ServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Fetch(context.Background(), "black-lotus")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, domain.ErrCardNotFound) {
		t.Error("server error must not map to not-found")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(&Config{})
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.http.Timeout == 0 {
		t.Error("expected default timeout")
	}
}
