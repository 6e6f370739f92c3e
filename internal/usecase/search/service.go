package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/domain"
	"github.com/answerdesk/retrieval/internal/metrics"
)

// Strategy labels for the winning retrieval path of a call.
const (
	StrategyCache   = "cache"
	StrategyVector  = "vector"
	StrategyKeyword = "keyword"
	StrategyNone    = "none"
)

// Config tunes retrieval limits, thresholds, and per-call timeouts.
type Config struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
	ThresholdStep    float64
	ThresholdFloor   float64
	CallTimeout      time.Duration
}

// Result is the outcome of one retrieval call. Chunks is never nil on a
// successful call; Suggestion is set whenever Chunks is empty.
type Result struct {
	Chunks     []domain.Chunk `json:"chunks"`
	Strategy   string         `json:"strategy"`
	Recovery   []Attempt      `json:"recovery,omitempty"`
	CacheHit   bool           `json:"cache_hit"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// Orchestrator composes tenant resolution, result caching, both search
// strategies, and zero-result recovery into one retrieval call.
type Orchestrator struct {
	tenants TenantResolver
	cache   ResultCache
	content ContentSearcher
	embed   Embedder
	cfg     Config
	logger  *zap.Logger
}

// New creates a search orchestrator.
func New(
	tenants TenantResolver,
	cache ResultCache,
	content ContentSearcher,
	embed Embedder,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		tenants: tenants,
		cache:   cache,
		content: content,
		embed:   embed,
		cfg:     cfg,
		logger:  logger,
	}
}

// Retrieve runs one retrieval call: resolve tenant, check the result cache,
// run vector-then-keyword search, and escalate through the recovery ladder on
// zero results.
//
// An unknown tenant and a fully exhausted recovery ladder are both successful
// calls returning empty chunks plus a suggestion; only malformed input and
// upstream unavailability surface as errors.
func (o *Orchestrator) Retrieve(
	ctx context.Context, text, tenantRaw string, limit int, threshold float64,
) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query text is empty: %w", domain.ErrMalformedQuery)
	}

	limit = o.clampLimit(limit)
	if threshold <= 0 {
		threshold = o.cfg.DefaultThreshold
	}

	start := time.Now()

	tenantID, err := o.tenants.Resolve(ctx, tenantRaw)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			o.observe(StrategyNone, "tenant_not_found", start)
			return &Result{
				Chunks:     []domain.Chunk{},
				Strategy:   StrategyNone,
				Suggestion: exhaustedSuggestion(text),
			}, nil
		}
		o.observe(StrategyNone, "error", start)
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}

	q := domain.Query{Text: text, Tenant: tenantID, Limit: limit, Threshold: threshold}

	if chunks, ok := o.cache.Get(ctx, q); ok {
		o.observe(StrategyCache, "ok", start)
		return &Result{Chunks: chunks, Strategy: StrategyCache, CacheHit: true}, nil
	}

	chunks, strategy, err := o.searchOnce(ctx, tenantID, text, limit, threshold)
	if err != nil {
		o.observe(strategy, "error", start)
		return nil, err
	}

	result := &Result{Chunks: chunks, Strategy: strategy}

	if len(chunks) == 0 {
		recovered, attempts, suggestion, rerr := o.recover(ctx, tenantID, text, limit, threshold)
		if rerr != nil {
			o.observe(StrategyNone, "error", start)
			return nil, rerr
		}
		result.Chunks = recovered
		result.Recovery = attempts
		result.Suggestion = suggestion
		if n := len(attempts); n > 0 && len(recovered) > 0 {
			result.Strategy = attempts[n-1].Strategy
		}
	}

	if len(result.Chunks) > 0 {
		o.cache.Put(ctx, q, result.Chunks)
		o.observe(result.Strategy, "ok", start)
	} else {
		result.Strategy = StrategyNone
		o.observe(StrategyNone, "empty", start)
	}

	return result, nil
}

// searchOnce runs vector search first (when an embedding is available), then
// keyword search. Exactly one strategy's output is returned, never a blend.
func (o *Orchestrator) searchOnce(
	ctx context.Context, tenant domain.TenantID,
	text string, limit int, threshold float64,
) ([]domain.Chunk, string, error) {
	if vec, ok := o.embedQuery(ctx, text); ok {
		chunks, err := o.vectorSearch(ctx, tenant, vec, limit, threshold)
		if err != nil {
			return nil, StrategyVector, err
		}
		if len(chunks) > 0 {
			return chunks, StrategyVector, nil
		}
	}

	chunks, err := o.keywordSearch(ctx, tenant, text, limit)
	if err != nil {
		return nil, StrategyKeyword, err
	}
	if len(chunks) > 0 {
		return chunks, StrategyKeyword, nil
	}

	return []domain.Chunk{}, StrategyNone, nil
}

// embedQuery vectorizes the query text. Any failure (provider down, timeout)
// degrades to keyword-only search instead of failing the request.
func (o *Orchestrator) embedQuery(ctx context.Context, text string) ([]float32, bool) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	result, err := o.embed.Embed(cctx, text)
	if err != nil {
		o.logger.Warn("Embedding failed, falling back to keyword search", zap.Error(err))
		return nil, false
	}
	if len(result.Embedding) == 0 {
		return nil, false
	}
	return result.Embedding, true
}

func (o *Orchestrator) vectorSearch(
	ctx context.Context, tenant domain.TenantID,
	vec []float32, limit int, threshold float64,
) ([]domain.Chunk, error) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	chunks, err := o.content.SearchVector(cctx, tenant, vec, limit, threshold)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("Vector search timed out", zap.String("tenant", string(tenant)))
			return []domain.Chunk{}, nil
		}
		return nil, err
	}
	return chunks, nil
}

func (o *Orchestrator) keywordSearch(
	ctx context.Context, tenant domain.TenantID,
	text string, limit int,
) ([]domain.Chunk, error) {
	cctx, cancel := o.callCtx(ctx)
	defer cancel()

	chunks, err := o.content.SearchKeyword(cctx, tenant, text, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("Keyword search timed out", zap.String("tenant", string(tenant)))
			return []domain.Chunk{}, nil
		}
		return nil, err
	}
	return chunks, nil
}

func (o *Orchestrator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.CallTimeout)
}

func (o *Orchestrator) clampLimit(limit int) int {
	if limit <= 0 {
		return o.cfg.DefaultLimit
	}
	if o.cfg.MaxLimit > 0 && limit > o.cfg.MaxLimit {
		return o.cfg.MaxLimit
	}
	return limit
}

func (o *Orchestrator) observe(strategy, outcome string, start time.Time) {
	metrics.SearchRequestsTotal.WithLabelValues(strategy, outcome).Inc()
	metrics.SearchDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
