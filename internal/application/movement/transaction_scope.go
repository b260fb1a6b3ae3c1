package movement

import (
	"context"

	"github.com/gestock/backend/internal/domain/inventory"
	"github.com/gestock/backend/internal/domain/movement"
)

// TransactionScope provides transactional access to movement repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories participating in
// a movement transaction. All repositories returned share the same underlying
// database transaction.
//
// Aggregate boundary notes:
//   - MovementRepo: Repository for the MovementRequest aggregate root. Items and
//     selections are child entities persisted via the aggregate.
//   - LotRepo: StockLot is a separate aggregate owned by the inventory context.
//     Transfers cross both aggregates, which is why lot deduction, destination
//     crediting and movement state changes must share one transaction.
type TransactionalRepositories interface {
	// MovementRepo returns the movement repository scoped to the current transaction
	MovementRepo() movement.MovementRequestRepository
	// LotRepo returns the stock lot repository scoped to the current transaction
	LotRepo() inventory.StockLotRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	movementRepo movement.MovementRequestRepository
	lotRepo      inventory.StockLotRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	movementRepo movement.MovementRequestRepository,
	lotRepo inventory.StockLotRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		movementRepo: movementRepo,
		lotRepo:      lotRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// MovementRepo returns the movement repository.
func (s *NoOpTransactionScope) MovementRepo() movement.MovementRequestRepository {
	return s.movementRepo
}

// LotRepo returns the stock lot repository.
func (s *NoOpTransactionScope) LotRepo() inventory.StockLotRepository {
	return s.lotRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
