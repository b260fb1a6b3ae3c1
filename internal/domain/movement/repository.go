package movement

import (
	"context"

	"github.com/gestock/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementRequestRepository defines the persistence contract for movements
type MovementRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*MovementRequest, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*MovementRequest, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, movementNumber string) (*MovementRequest, error)
	// FindDraft returns the open draft for a (requester, provider, user)
	// triple, or shared.ErrNotFound when none exists. createDraft reuses it
	// instead of opening a duplicate.
	FindDraft(ctx context.Context, tenantID, requestingServiceID, providingServiceID, requestingUserID uuid.UUID) (*MovementRequest, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]MovementRequest, error)
	FindByService(ctx context.Context, tenantID, serviceID uuid.UUID, filter shared.Filter) ([]MovementRequest, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Save(ctx context.Context, m *MovementRequest) error
	// SaveWithLock saves with an optimistic version check
	SaveWithLock(ctx context.Context, m *MovementRequest) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
	// GenerateMovementNumber allocates the next SM-{year}-{NNNNNN} number
	// for the tenant. Implementations must allocate inside the transaction
	// that creates the draft so numbers stay unique under concurrency.
	GenerateMovementNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}
