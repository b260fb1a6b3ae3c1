package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/domain/shared"
)

// MovementSequence is the per-tenant, per-year counter backing movement
// number allocation. The row is locked FOR UPDATE while a number is handed
// out, so allocation is atomic within the surrounding transaction.
type MovementSequence struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Year      int       `gorm:"primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MovementSequence) TableName() string {
	return "movement_sequences"
}

// GormMovementRepository implements MovementRequestRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// FindByID finds a movement request by its ID
func (r *GormMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*movement.MovementRequest, error) {
	var m movement.MovementRequest
	if err := r.db.WithContext(ctx).
		Preload("Items.Selections").
		Preload("Items").
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByIDForTenant finds a movement request by ID within a tenant
func (r *GormMovementRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*movement.MovementRequest, error) {
	var m movement.MovementRequest
	if err := r.db.WithContext(ctx).
		Preload("Items.Selections").
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByNumber finds a movement request by movement number for a tenant
func (r *GormMovementRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, movementNumber string) (*movement.MovementRequest, error) {
	var m movement.MovementRequest
	if err := r.db.WithContext(ctx).
		Preload("Items.Selections").
		Preload("Items").
		Where("tenant_id = ? AND movement_number = ?", tenantID, movementNumber).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindDraft finds the open draft an actor already has towards a provider, if any
func (r *GormMovementRepository) FindDraft(ctx context.Context, tenantID, requestingServiceID, providingServiceID, requestingUserID uuid.UUID) (*movement.MovementRequest, error) {
	var m movement.MovementRequest
	if err := r.db.WithContext(ctx).
		Preload("Items.Selections").
		Preload("Items").
		Where("tenant_id = ? AND requesting_service_id = ? AND providing_service_id = ? AND requesting_user_id = ? AND status = ?",
			tenantID, requestingServiceID, providingServiceID, requestingUserID, movement.MovementStatusDraft).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindAllForTenant finds all movement requests for a tenant with filtering
func (r *GormMovementRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]movement.MovementRequest, error) {
	var movements []movement.MovementRequest
	query := r.db.WithContext(ctx).Model(&movement.MovementRequest{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilter(query, filter)

	if err := query.Preload("Items").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// FindByService finds movement requests where the given service is either
// the requester or the provider
func (r *GormMovementRepository) FindByService(ctx context.Context, tenantID, serviceID uuid.UUID, filter shared.Filter) ([]movement.MovementRequest, error) {
	var movements []movement.MovementRequest
	query := r.db.WithContext(ctx).Model(&movement.MovementRequest{}).
		Where("tenant_id = ? AND (requesting_service_id = ? OR providing_service_id = ?)", tenantID, serviceID, serviceID)
	query = r.applyFilter(query, filter)

	if err := query.Preload("Items").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// CountForTenant counts movement requests for a tenant with optional filters
func (r *GormMovementRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&movement.MovementRequest{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a movement request together with its items and selections
func (r *GormMovementRepository) Save(ctx context.Context, m *movement.MovementRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Save(m).Error; err != nil {
			return err
		}
		return r.saveItems(tx, m)
	})
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormMovementRepository) SaveWithLock(ctx context.Context, m *movement.MovementRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The aggregate incremented its version in memory; the row must still
		// hold the previous one.
		previousVersion := m.Version - 1

		result := tx.Model(&movement.MovementRequest{}).
			Where("id = ? AND version = ?", m.ID, previousVersion).
			Updates(map[string]interface{}{
				"status":                m.Status,
				"request_reason":        m.RequestReason,
				"expected_delivery_date": m.ExpectedDeliveryDate,
				"requested_at":          m.RequestedAt,
				"approving_user_id":     m.ApprovingUserID,
				"approval_notes":        m.ApprovalNotes,
				"transfer_initiated_at": m.TransferInitiatedAt,
				"transfer_initiated_by": m.TransferInitiatedBy,
				"delivery_confirmed_at": m.DeliveryConfirmedAt,
				"delivery_confirmed_by": m.DeliveryConfirmedBy,
				"delivery_notes":        m.DeliveryNotes,
				"missing_quantity":      m.MissingQuantity,
				"version":               m.Version,
				"updated_at":            m.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "The movement has been modified by another request")
		}

		return r.saveItems(tx, m)
	})
}

// saveItems reconciles the item rows (and their selections) with the aggregate
func (r *GormMovementRepository) saveItems(tx *gorm.DB, m *movement.MovementRequest) error {
	currentItemIDs := make([]uuid.UUID, len(m.Items))
	for i := range m.Items {
		currentItemIDs[i] = m.Items[i].ID
	}

	if len(currentItemIDs) > 0 {
		if err := tx.Where("movement_item_id IN (?)",
			tx.Model(&movement.MovementItem{}).Select("id").
				Where("movement_id = ? AND id NOT IN ?", m.ID, currentItemIDs),
		).Delete(&movement.InventorySelection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("movement_id = ? AND id NOT IN ?", m.ID, currentItemIDs).
			Delete(&movement.MovementItem{}).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Where("movement_item_id IN (?)",
			tx.Model(&movement.MovementItem{}).Select("id").Where("movement_id = ?", m.ID),
		).Delete(&movement.InventorySelection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("movement_id = ?", m.ID).
			Delete(&movement.MovementItem{}).Error; err != nil {
			return err
		}
	}

	for i := range m.Items {
		item := &m.Items[i]
		item.MovementID = m.ID
		if err := tx.Omit("Selections").Save(item).Error; err != nil {
			return err
		}

		selectionIDs := make([]uuid.UUID, len(item.Selections))
		for j := range item.Selections {
			selectionIDs[j] = item.Selections[j].ID
		}
		if len(selectionIDs) > 0 {
			if err := tx.Where("movement_item_id = ? AND id NOT IN ?", item.ID, selectionIDs).
				Delete(&movement.InventorySelection{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("movement_item_id = ?", item.ID).
				Delete(&movement.InventorySelection{}).Error; err != nil {
				return err
			}
		}
		for j := range item.Selections {
			item.Selections[j].MovementItemID = item.ID
			if err := tx.Save(&item.Selections[j]).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteForTenant deletes a movement request with its items and selections
func (r *GormMovementRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m movement.MovementRequest
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		if err := tx.Where("movement_item_id IN (?)",
			tx.Model(&movement.MovementItem{}).Select("id").Where("movement_id = ?", id),
		).Delete(&movement.InventorySelection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("movement_id = ?", id).Delete(&movement.MovementItem{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&movement.MovementRequest{}, "tenant_id = ? AND id = ?", tenantID, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// GenerateMovementNumber allocates the next movement number for a tenant.
// Format: SM-YYYY-NNNNNN (e.g. SM-2026-000042). The per-tenant, per-year
// sequence row is locked FOR UPDATE, so callers running inside a transaction
// get a number no concurrent creator can also observe.
func (r *GormMovementRepository) GenerateMovementNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	year := time.Now().Year()

	var seq MovementSequence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND year = ?", tenantID, year).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = MovementSequence{TenantID: tenantID, Year: year, Value: 0}
		// ON CONFLICT DO NOTHING: a concurrent creator may have inserted the
		// row between our lookup and the insert, the retry below locks it.
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&seq).Error; err != nil {
			return "", err
		}
		if err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND year = ?", tenantID, year).
			First(&seq).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	seq.Value++
	seq.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).
		Model(&MovementSequence{}).
		Where("tenant_id = ? AND year = ?", tenantID, year).
		Updates(map[string]interface{}{"value": seq.Value, "updated_at": seq.UpdatedAt}).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("SM-%d-%06d", year, seq.Value), nil
}

// applyFilter applies filter options to the query
func (r *GormMovementRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	// Apply ordering with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, MovementSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormMovementRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("movement_number ILIKE ?", "%"+filter.Search+"%")
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "statuses":
			if statuses, ok := value.([]string); ok && len(statuses) > 0 {
				query = query.Where("status IN ?", statuses)
			}
		case "service_id":
			query = query.Where("requesting_service_id = ? OR providing_service_id = ?", value, value)
		case "requesting_service_id":
			query = query.Where("requesting_service_id = ?", value)
		case "providing_service_id":
			query = query.Where("providing_service_id = ?", value)
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("created_at <= ?", t)
			}
		}
	}
	return query
}

// Ensure GormMovementRepository implements MovementRequestRepository
var _ movement.MovementRequestRepository = (*GormMovementRepository)(nil)
