package inventory

import (
	"fmt"
	"time"

	"github.com/gestock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLot represents a physical inventory record at a service location.
// A lot is scoped by batch/serial/expiry attributes; two deliveries of the
// same product never share a lot.
type StockLot struct {
	shared.TenantAggregateRoot
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_lot_product_service"`
	ServiceID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_lot_product_service"` // Service (location) holding the lot
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`                  // Units currently in the lot
	TotalUnits   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`                  // Units originally received into the lot
	BatchNumber  string          `gorm:"type:varchar(100)"`
	SerialNumber string          `gorm:"type:varchar(100)"`
	ExpiryDate   *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (StockLot) TableName() string {
	return "stock_lots"
}

// NewStockLot creates a new stock lot at a service location
func NewStockLot(tenantID, productID, serviceID uuid.UUID, quantity decimal.Decimal, batchNumber, serialNumber string, expiryDate *time.Time) (*StockLot, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if serviceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SERVICE", "Service ID cannot be empty")
	}
	if quantity.LessThan(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Lot quantity cannot be negative")
	}

	return &StockLot{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		ServiceID:           serviceID,
		Quantity:            quantity,
		TotalUnits:          quantity,
		BatchNumber:         batchNumber,
		SerialNumber:        serialNumber,
		ExpiryDate:          expiryDate,
	}, nil
}

// Deduct removes quantity from the lot. The deduction is all-or-nothing:
// an insufficient lot leaves the quantity untouched and returns
// INSUFFICIENT_STOCK naming the product.
func (l *StockLot) Deduct(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Deduct quantity must be positive")
	}
	if l.Quantity.LessThan(quantity) {
		return shared.NewDomainError("INSUFFICIENT_STOCK",
			fmt.Sprintf("Insufficient stock for product %s: lot has %s, %s requested",
				l.ProductID, l.Quantity.String(), quantity.String()))
	}

	l.Quantity = l.Quantity.Sub(quantity)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// HasStock returns true if the lot can cover the given quantity
func (l *StockLot) HasStock(quantity decimal.Decimal) bool {
	return l.Quantity.GreaterThanOrEqual(quantity)
}

// IsExpired returns true if the lot has passed its expiry date
func (l *StockLot) IsExpired() bool {
	if l.ExpiryDate == nil {
		return false
	}
	return l.ExpiryDate.Before(time.Now())
}
