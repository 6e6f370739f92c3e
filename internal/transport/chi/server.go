package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/domain"
	healthuc "github.com/answerdesk/retrieval/internal/usecase/health"
	searchuc "github.com/answerdesk/retrieval/internal/usecase/search"
)

// Error response codes.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeMalformedQuery      = "malformed_query"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeEmbeddingProvider   = "embedding_provider_error"
	codeInternalError       = "internal_error"
)

// Retriever runs one retrieval call.
type Retriever interface {
	Retrieve(ctx context.Context, text, tenantRaw string, limit int, threshold float64) (*searchuc.Result, error)
}

// IntentAnalyzer classifies query text.
type IntentAnalyzer interface {
	Analyze(text string) domain.Intent
}

// ContextFormatter renders chunks into prompt-ready text.
type ContextFormatter interface {
	Format(chunks []domain.Chunk) string
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server exposes the retrieval API over HTTP.
type Server struct {
	retriever Retriever
	intents   IntentAnalyzer
	formatter ContextFormatter
	health    HealthChecker
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	retriever Retriever,
	intents IntentAnalyzer,
	formatter ContextFormatter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		retriever: retriever,
		intents:   intents,
		formatter: formatter,
		health:    health,
		logger:    logger,
	}
}

// Mount registers all routes on the given router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/v1/retrieve", s.RetrieveContext)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type retrieveRequest struct {
	Query     string   `json:"query"`
	Domain    string   `json:"domain"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type retrieveResponse struct {
	Context    string             `json:"context"`
	Chunks     []domain.Chunk     `json:"chunks"`
	Intent     domain.Intent      `json:"intent"`
	Strategy   string             `json:"strategy"`
	CacheHit   bool               `json:"cache_hit"`
	Recovery   []searchuc.Attempt `json:"recovery,omitempty"`
	Suggestion string             `json:"suggestion,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RetrieveContext handles POST /v1/retrieve: classify intent, run retrieval,
// and format the chunk set into prompt-ready context.
func (s *Server) RetrieveContext(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Domain == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "domain is required")
		return
	}

	intent := s.intents.Analyze(req.Query)

	limit := intent.SuggestedChunks
	if req.Limit != nil {
		limit = *req.Limit
	}
	threshold := 0.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	result, err := s.retriever.Retrieve(r.Context(), req.Query, req.Domain, limit, threshold)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Context:    s.formatter.Format(result.Chunks),
		Chunks:     result.Chunks,
		Intent:     intent,
		Strategy:   result.Strategy,
		CacheHit:   result.CacheHit,
		Recovery:   result.Recovery,
		Suggestion: result.Suggestion,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))

	switch {
	case errors.Is(err, domain.ErrMalformedQuery):
		writeError(w, http.StatusBadRequest, codeMalformedQuery, domain.ErrMalformedQuery.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeUpstreamUnavailable, domain.ErrUpstreamUnavailable.Error())
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, codeEmbeddingProvider, domain.ErrEmbeddingProviderError.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
