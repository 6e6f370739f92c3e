package search

import (
	"context"

	"github.com/answerdesk/retrieval/internal/domain"
)

// TenantResolver maps a raw domain string to a tenant ID.
type TenantResolver interface {
	Resolve(ctx context.Context, raw string) (domain.TenantID, error)
}

// ResultCache stores completed retrievals keyed by query identity.
type ResultCache interface {
	Get(ctx context.Context, q domain.Query) ([]domain.Chunk, bool)
	Put(ctx context.Context, q domain.Query, chunks []domain.Chunk)
}

// ContentSearcher defines the storage contract for both search strategies.
type ContentSearcher interface {
	SearchVector(
		ctx context.Context, tenant domain.TenantID,
		vector []float32, limit int, threshold float64,
	) ([]domain.Chunk, error)

	SearchKeyword(
		ctx context.Context, tenant domain.TenantID,
		text string, limit int,
	) ([]domain.Chunk, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
