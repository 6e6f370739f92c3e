package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/answerdesk/retrieval/internal/domain"
)

// store is the consumer interface for tenant lookups (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo resolves tenant records stored as hashes keyed by bare host.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a tenant repository. keyPrefix namespaces all tenant keys,
// e.g. "retrieval:" yields keys like "retrieval:tenant:acme.example".
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// FindByHost looks a tenant up by raw domain reference. The raw value is
// reduced to a bare host for the storage key, so this is always exactly one
// datastore round-trip regardless of how the caller spelled the domain.
func (r *Repo) FindByHost(ctx context.Context, raw string) (domain.TenantRecord, error) {
	host := CanonicalHost(raw)
	if host == "" {
		return domain.TenantRecord{}, domain.ErrTenantNotFound
	}

	fields, err := r.store.HGetAll(ctx, r.key(host))
	if err != nil {
		return domain.TenantRecord{}, fmt.Errorf("tenant lookup %s: %w: %w", host, domain.ErrUpstreamUnavailable, err)
	}
	if fields["id"] == "" {
		return domain.TenantRecord{}, domain.ErrTenantNotFound
	}

	return domain.TenantRecord{
		ID:   domain.TenantID(fields["id"]),
		Host: host,
		Name: fields["name"],
	}, nil
}

func (r *Repo) key(host string) string {
	return r.keyPrefix + "tenant:" + host
}

// CanonicalHost reduces a raw domain reference to the bare lowercase host used
// as the tenant storage key: scheme, "www." prefix, path, and trailing slash
// are stripped.
func CanonicalHost(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexByte(h, '/'); i >= 0 {
		h = h[:i]
	}
	h = strings.TrimPrefix(h, "www.")
	return h
}
