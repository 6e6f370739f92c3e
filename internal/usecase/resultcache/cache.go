package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/db"
	"github.com/answerdesk/retrieval/internal/domain"
	"github.com/answerdesk/retrieval/internal/metrics"
)

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache stores completed search results keyed by the full query identity
// (tenant, normalized text, limit, threshold). Entries expire after the
// configured TTL; empty results are never stored so a tenant whose content
// arrives later is not shadowed by a cached miss.
type Cache struct {
	store     store
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	lookupNs  atomic.Int64
	lookupCnt atomic.Int64
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
	AvgLookupUs  float64 `json:"avg_lookup_us"`
	TotalLookups int64   `json:"total_lookups"`
}

// New creates a result cache on top of a key-value store.
func New(s store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		store:     s,
		keyPrefix: keyPrefix + "search_cache:",
		ttl:       ttl,
		logger:    logger,
	}
}

// Key derives the cache key for a query. Text is normalized first, so
// "Waterproof  Connectors" and "waterproof connectors" share an entry.
func (c *Cache) Key(q domain.Query) string {
	payload := fmt.Sprintf("%s|%s|%d|%.4f",
		q.Tenant, domain.NormalizeText(q.Text), q.Limit, q.Threshold)
	h := sha256.Sum256([]byte(payload))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

// Get returns the cached chunks for a query, or ok=false on a miss. Store
// failures and corrupt entries are treated as misses.
func (c *Cache) Get(ctx context.Context, q domain.Query) ([]domain.Chunk, bool) {
	start := time.Now()
	data, err := c.store.Get(ctx, c.Key(q))
	elapsed := time.Since(start)

	c.lookupNs.Add(elapsed.Nanoseconds())
	c.lookupCnt.Add(1)
	metrics.ResultCacheLookupDuration.Observe(elapsed.Seconds())

	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Result cache lookup failed", zap.Error(err))
		}
		c.miss()
		return nil, false
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		c.logger.Warn("Corrupt result cache entry", zap.Error(err))
		c.miss()
		return nil, false
	}

	c.hits.Add(1)
	metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
	return chunks, true
}

// Put stores a search result. Empty results are skipped.
func (c *Cache) Put(ctx context.Context, q domain.Query, chunks []domain.Chunk) {
	if len(chunks) == 0 {
		return
	}

	data, err := json.Marshal(chunks)
	if err != nil {
		c.logger.Warn("Failed to encode search result", zap.Error(err))
		return
	}

	if err := c.store.SetWithTTL(ctx, c.Key(q), data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache search result", zap.Error(err))
	}
}

// Stats reports hit/miss counters and average lookup latency.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	s := Stats{Hits: hits, Misses: misses, TotalLookups: total}
	if total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	if cnt := c.lookupCnt.Load(); cnt > 0 {
		s.AvgLookupUs = float64(c.lookupNs.Load()) / float64(cnt) / 1e3
	}
	return s
}

func (c *Cache) miss() {
	c.misses.Add(1)
	metrics.ResultCacheTotal.WithLabelValues("miss").Inc()
}
