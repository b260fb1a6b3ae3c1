package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gestock/backend/internal/domain/inventory"
	"github.com/gestock/backend/internal/domain/shared"
)

// GormStockLotRepository implements StockLotRepository using GORM
type GormStockLotRepository struct {
	db *gorm.DB
}

// NewGormStockLotRepository creates a new GormStockLotRepository
func NewGormStockLotRepository(db *gorm.DB) *GormStockLotRepository {
	return &GormStockLotRepository{db: db}
}

// FindByID finds a stock lot by its ID
func (r *GormStockLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockLot, error) {
	var lot inventory.StockLot
	if err := r.db.WithContext(ctx).First(&lot, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// FindByIDForTenant finds a stock lot by ID within a tenant
func (r *GormStockLotRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockLot, error) {
	var lot inventory.StockLot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// FindByIDsForUpdate loads the given lots with SELECT ... FOR UPDATE row locks.
// Must run inside a transaction; lots are locked in primary-key order so that
// two overlapping transfers acquire them in the same sequence.
func (r *GormStockLotRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.StockLot, error) {
	if len(ids) == 0 {
		return []inventory.StockLot{}, nil
	}
	var lots []inventory.StockLot
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// FindByProductAndService lists the lots a service holds for one product
func (r *GormStockLotRepository) FindByProductAndService(ctx context.Context, tenantID, productID, serviceID uuid.UUID) ([]inventory.StockLot, error) {
	var lots []inventory.StockLot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND service_id = ?", tenantID, productID, serviceID).
		Order("expiry_date ASC NULLS LAST, created_at ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

// Save creates or updates a stock lot without a version check
func (r *GormStockLotRepository) Save(ctx context.Context, lot *inventory.StockLot) error {
	return r.db.WithContext(ctx).Save(lot).Error
}

// SaveWithLock updates a lot guarded by its optimistic version. The quantity
// write only lands if no concurrent writer touched the row since it was read.
func (r *GormStockLotRepository) SaveWithLock(ctx context.Context, lot *inventory.StockLot) error {
	previousVersion := lot.Version - 1

	result := r.db.WithContext(ctx).
		Model(&inventory.StockLot{}).
		Where("id = ? AND version = ?", lot.ID, previousVersion).
		Updates(map[string]interface{}{
			"quantity":   lot.Quantity,
			"version":    lot.Version,
			"updated_at": lot.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "The stock lot has been modified by another request")
	}
	return nil
}

// Create inserts a new stock lot
func (r *GormStockLotRepository) Create(ctx context.Context, lot *inventory.StockLot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

// Ensure GormStockLotRepository implements StockLotRepository
var _ inventory.StockLotRepository = (*GormStockLotRepository)(nil)
