package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/answerdesk/retrieval/internal/domain"
	"github.com/answerdesk/retrieval/internal/metrics"
)

// Resolver maps a raw domain string (as received from a widget or API caller)
// to a tenant ID. Resolutions are cached in an in-process LRU keyed by the raw
// string, so equivalent spellings of the same domain converge on the cache
// without repeated datastore round-trips.
type Resolver struct {
	repo   Repository
	cache  *lru.Cache[string, domain.TenantID]
	logger *zap.Logger
}

// New creates a tenant resolver with an LRU cache of the given capacity.
func New(repo Repository, cacheSize int, logger *zap.Logger) (*Resolver, error) {
	cache, err := lru.New[string, domain.TenantID](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create tenant cache: %w", err)
	}
	return &Resolver{repo: repo, cache: cache, logger: logger}, nil
}

// Resolve returns the tenant ID for a raw domain string.
//
// Lookup order: the raw string exactly as received, then its alternate
// spellings (scheme stripped, trailing slash stripped, www toggled,
// lowercased), then a single datastore lookup. A successful datastore hit is
// cached under both the raw string and the canonical host so future variants
// short-circuit.
func (r *Resolver) Resolve(ctx context.Context, raw string) (domain.TenantID, error) {
	if id, ok := r.cache.Get(raw); ok {
		metrics.TenantCacheTotal.WithLabelValues("hit").Inc()
		return id, nil
	}

	for _, alt := range alternateKeys(raw) {
		if id, ok := r.cache.Get(alt); ok {
			metrics.TenantCacheTotal.WithLabelValues("alternate_hit").Inc()
			r.cache.Add(raw, id)
			return id, nil
		}
	}

	metrics.TenantCacheTotal.WithLabelValues("miss").Inc()

	rec, err := r.repo.FindByHost(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			metrics.TenantLookupsTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.TenantLookupsTotal.WithLabelValues("error").Inc()
			r.logger.Warn("Tenant lookup failed", zap.String("raw", raw), zap.Error(err))
		}
		return "", err
	}

	metrics.TenantLookupsTotal.WithLabelValues("resolved").Inc()

	r.cache.Add(raw, rec.ID)
	if rec.Host != "" && rec.Host != raw {
		r.cache.Add(rec.Host, rec.ID)
	}
	return rec.ID, nil
}

// Stats reports the current number of cached resolutions.
func (r *Resolver) Stats() int {
	return r.cache.Len()
}

// alternateKeys returns the ordered, deduplicated cache keys a raw domain
// string may have been cached under by an earlier resolve of an equivalent
// spelling. The raw string itself is excluded.
func alternateKeys(raw string) []string {
	seen := map[string]bool{raw: true}
	var alts []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			alts = append(alts, s)
		}
	}

	lower := strings.ToLower(strings.TrimSpace(raw))
	add(lower)

	host := strings.TrimPrefix(lower, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	add(host)

	if bare, ok := strings.CutPrefix(host, "www."); ok {
		add(bare)
	} else {
		add("www." + host)
	}

	return alts
}
