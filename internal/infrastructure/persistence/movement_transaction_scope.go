package persistence

import (
	"context"

	"gorm.io/gorm"

	appmovement "github.com/gestock/backend/internal/application/movement"
	"github.com/gestock/backend/internal/domain/inventory"
	"github.com/gestock/backend/internal/domain/movement"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appmovement.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// MovementRepo returns the movement repository scoped to the current transaction.
func (r *gormTransactionalRepositories) MovementRepo() movement.MovementRequestRepository {
	return NewGormMovementRepository(r.tx)
}

// LotRepo returns the stock lot repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LotRepo() inventory.StockLotRepository {
	return NewGormStockLotRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appmovement.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appmovement.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
