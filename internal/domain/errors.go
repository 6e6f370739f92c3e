package domain

import "errors"

var (
	// ErrTenantNotFound signals that no tenant matched the raw domain after the
	// full fallback ladder. Callers treat it as "zero content available".
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrMalformedQuery signals an empty or whitespace-only query text.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrUpstreamUnavailable signals a transiently unavailable datastore or
	// embedding service. Retryable by caller policy.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
