package tenant

import (
	"context"

	"github.com/answerdesk/retrieval/internal/domain"
)

// Repository defines the storage contract for tenant resolution.
type Repository interface {
	FindByHost(ctx context.Context, raw string) (domain.TenantRecord, error)
}
