package inventory

import (
	"context"

	"github.com/google/uuid"
)

// StockLotRepository defines the persistence contract for stock lots.
// The movement workflow only ever decrements existing lots (transfer) and
// creates brand-new lots at the destination (delivery); lots are never merged.
type StockLotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockLot, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*StockLot, error)
	// FindByIDsForUpdate loads the given lots under a pessimistic row lock
	// (SELECT ... FOR UPDATE). Must be called inside a transaction.
	FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]StockLot, error)
	FindByProductAndService(ctx context.Context, tenantID, productID, serviceID uuid.UUID) ([]StockLot, error)
	Save(ctx context.Context, lot *StockLot) error
	// SaveWithLock saves with an optimistic version check and fails with
	// OPTIMISTIC_LOCK_FAILED when the row changed under us.
	SaveWithLock(ctx context.Context, lot *StockLot) error
	Create(ctx context.Context, lot *StockLot) error
}
