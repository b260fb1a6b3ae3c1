package movement

import (
	"time"

	"github.com/gestock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventorySelection binds a movement item to a specific stock lot and the
// quantity allocated from it. Selections are child entities of the item and
// are persisted with the aggregate.
//
// Lot attributes (batch/serial/expiry) are captured at selection time so the
// destination lot created at delivery can mirror them even if the source lot
// is emptied and cleaned up in the meantime.
type InventorySelection struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	MovementItemID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	StockLotID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SelectedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BatchNumber      string          `gorm:"type:varchar(100)"`
	SerialNumber     string          `gorm:"type:varchar(100)"`
	ExpiryDate       *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventorySelection) TableName() string {
	return "inventory_selections"
}

// NewInventorySelection creates a selection binding an item to a lot
func NewInventorySelection(itemID, lotID uuid.UUID, quantity decimal.Decimal, batchNumber, serialNumber string, expiryDate *time.Time) (*InventorySelection, error) {
	if lotID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOT", "Stock lot ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Selected quantity must be positive")
	}

	now := time.Now()
	return &InventorySelection{
		ID:               uuid.New(),
		MovementItemID:   itemID,
		StockLotID:       lotID,
		SelectedQuantity: quantity,
		BatchNumber:      batchNumber,
		SerialNumber:     serialNumber,
		ExpiryDate:       expiryDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}
