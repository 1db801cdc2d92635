// Package chi exposes the identification and catalog pipelines over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cardex-io/cardex/internal/domain"
	healthuc "github.com/cardex-io/cardex/internal/usecase/health"
)

// maxImageBytes caps uploaded query images at 16 MiB.
const maxImageBytes = 16 << 20

// errorCode is the machine-readable code in error responses.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeImageDecode       errorCode = "image_decode_failed"
	codeCardNotFound      errorCode = "card_not_found"
	codePriceUnavailable  errorCode = "price_unavailable"
	codeVectorDimMismatch errorCode = "vector_dim_mismatch"
	codeEmbeddingProvider errorCode = "embedding_provider_error"
	codeIndexUnavailable  errorCode = "index_unavailable"
	codeInternalError     errorCode = "internal_error"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Identifier answers identification queries. topK <= 0 selects the
// service default.
type Identifier interface {
	Identify(ctx context.Context, namespace string, image io.Reader, topK int) ([]domain.Match, error)
}

// Cataloger reconciles and lists the inventory ledger.
type Cataloger interface {
	Reconcile(ctx context.Context, indexID string) (domain.CatalogRow, error)
	List(ctx context.Context) ([]domain.CatalogRow, float64, error)
}

// IndexStats reports per-namespace vector counts.
type IndexStats interface {
	Stats(ctx context.Context, namespace string) (int, error)
}

// Server handles the HTTP API.
type Server struct {
	identify      Identifier
	catalog       Cataloger
	stats         IndexStats
	health        *healthuc.Service
	namespace     string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. namespace is the default namespace
// used when a request does not name one.
func NewServer(
	identify Identifier,
	catalog Cataloger,
	stats IndexStats,
	health *healthuc.Service,
	namespace string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		identify:  identify,
		catalog:   catalog,
		stats:     stats,
		health:    health,
		namespace: namespace,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrImageDecode, http.StatusBadRequest, codeImageDecode),
		sentinelHandler(domain.ErrCardNotFound, http.StatusNotFound, codeCardNotFound),
		sentinelHandler(domain.ErrPriceUnavailable, http.StatusUnprocessableEntity, codePriceUnavailable),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Routes registers all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/identify", s.handleIdentify)
	r.Post("/v1/catalog/reconcile", s.handleReconcile)
	r.Get("/v1/catalog", s.handleCatalog)
	r.Get("/v1/namespaces/{namespace}/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// matchItem is one identification candidate.
type matchItem struct {
	Identifier string  `json:"identifier"`
	Score      float64 `json:"score"`
}

// identifyResponse carries ranked candidates for a query image.
type identifyResponse struct {
	Namespace string      `json:"namespace"`
	Matches   []matchItem `json:"matches"`
}

// handleIdentify handles POST /v1/identify. The request body is the raw
// image (JPEG or PNG); ?namespace= overrides the default namespace and
// ?top_k= the default candidate count.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	namespace := s.requestNamespace(r)

	topK, err := requestTopK(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxImageBytes)
	matches, err := s.identify.Identify(r.Context(), namespace, body, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]matchItem, len(matches))
	for i, m := range matches {
		items[i] = matchItem{Identifier: m.ID, Score: m.Score}
	}

	writeJSON(w, http.StatusOK, identifyResponse{
		Namespace: namespace,
		Matches:   items,
	})
}

// reconcileRequest names the index record to merge into the ledger.
type reconcileRequest struct {
	Identifier string `json:"identifier"`
}

// catalogRow is the JSON shape of one ledger entry.
type catalogRow struct {
	Identifier    string   `json:"identifier"`
	Name          string   `json:"name"`
	ManaCost      string   `json:"mana_cost,omitempty"`
	CMC           float64  `json:"cmc"`
	TypeLine      string   `json:"type_line,omitempty"`
	Colors        []string `json:"colors,omitempty"`
	ColorIdentity []string `json:"color_identity,omitempty"`
	SetName       string   `json:"set_name,omitempty"`
	Rarity        string   `json:"rarity,omitempty"`
	FullArt       bool     `json:"full_art"`
	Price         float64  `json:"price"`
	NumberOwned   int      `json:"number_owned"`
	TotalValue    float64  `json:"total_value"`
}

// handleReconcile handles POST /v1/catalog/reconcile.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "identifier is required")
		return
	}

	row, err := s.catalog.Reconcile(r.Context(), req.Identifier)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rowToJSON(row))
}

// catalogResponse is the full ledger with its aggregate value.
type catalogResponse struct {
	Rows       []catalogRow `json:"rows"`
	TotalValue float64      `json:"total_value"`
}

// handleCatalog handles GET /v1/catalog.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	rows, total, err := s.catalog.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]catalogRow, len(rows))
	for i, row := range rows {
		items[i] = rowToJSON(row)
	}

	writeJSON(w, http.StatusOK, catalogResponse{
		Rows:       items,
		TotalValue: total,
	})
}

// statsResponse reports the vector count for one namespace.
type statsResponse struct {
	Namespace   string `json:"namespace"`
	VectorCount int    `json:"vector_count"`
}

// handleStats handles GET /v1/namespaces/{namespace}/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	count, err := s.stats.Stats(r.Context(), namespace)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Namespace:   namespace,
		VectorCount: count,
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) requestNamespace(r *http.Request) string {
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		return ns
	}
	return s.namespace
}

// requestTopK parses the optional ?top_k= parameter. Absent means 0, which
// downstream resolves to the configured default.
func requestTopK(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("top_k")
	if raw == "" {
		return 0, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k <= 0 {
		return 0, fmt.Errorf("top_k must be a positive integer, got %q", raw)
	}
	return k, nil
}

func rowToJSON(row domain.CatalogRow) catalogRow {
	return catalogRow{
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrImageDecode,
		domain.ErrCardNotFound,
		domain.ErrPriceUnavailable,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProvider,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
