package health

import (
	"context"

	"github.com/answerdesk/retrieval/internal/usecase/resultcache"
)

// DBPinger checks datastore availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CacheStats exposes result cache effectiveness counters.
type CacheStats interface {
	Stats() resultcache.Stats
}
