package movement

import (
	"fmt"
	"strings"
	"time"

	"github.com/gestock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus represents the provider's approval decision on an item.
// It is written explicitly at decision time; an item is editable only
// while the decision is still pending.
type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "PENDING"
	ItemStatusApproved ItemStatus = "APPROVED"
	ItemStatusRejected ItemStatus = "REJECTED"
)

// IsValid checks if the status is a valid ItemStatus
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusApproved, ItemStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of ItemStatus
func (s ItemStatus) String() string {
	return string(s)
}

// ConfirmationStatus represents the requester's delivery verdict on an item
type ConfirmationStatus string

const (
	ConfirmationStatusNone    ConfirmationStatus = ""
	ConfirmationStatusGood    ConfirmationStatus = "GOOD"
	ConfirmationStatusDamaged ConfirmationStatus = "DAMAGED"
	ConfirmationStatusManque  ConfirmationStatus = "MANQUE"
)

// IsValid checks if the status is a valid confirmation outcome
func (s ConfirmationStatus) IsValid() bool {
	switch s {
	case ConfirmationStatusGood, ConfirmationStatusDamaged, ConfirmationStatusManque:
		return true
	}
	return false
}

// String returns the string representation of ConfirmationStatus
func (s ConfirmationStatus) String() string {
	return string(s)
}

// MovementItem represents one requested product line within a movement.
//
// The six quantity fields are strictly staged facts, filled one per workflow
// stage and never decreased:
//
//	Requested (client intent) -> Approved (provider decision) ->
//	Provided (lots chosen) -> Sender (actually deducted) ->
//	Received (client-reported) -> Executed (credited to requester inventory)
type MovementItem struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	MovementID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null"`
	RequestedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ApprovedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ProvidedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SenderQuantity     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReceivedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ExecutedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status             ItemStatus      `gorm:"type:varchar(20);not null;default:'PENDING'"`
	ConfirmationStatus ConfirmationStatus `gorm:"type:varchar(20);not null;default:''"`
	ConfirmationNotes  string             `gorm:"type:varchar(500)"`
	Notes              string             `gorm:"type:varchar(500)"`
	Selections         []InventorySelection `gorm:"foreignKey:MovementItemID;references:ID"`
	CreatedAt          time.Time            `gorm:"not null"`
	UpdatedAt          time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MovementItem) TableName() string {
	return "movement_items"
}

// NewMovementItem creates a new pending item for a draft movement
func NewMovementItem(movementID, productID uuid.UUID, quantity decimal.Decimal, notes string) (*MovementItem, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	now := time.Now()
	return &MovementItem{
		ID:                 uuid.New(),
		MovementID:         movementID,
		ProductID:          productID,
		RequestedQuantity:  quantity,
		ApprovedQuantity:   decimal.Zero,
		ProvidedQuantity:   decimal.Zero,
		SenderQuantity:     decimal.Zero,
		ReceivedQuantity:   decimal.Zero,
		ExecutedQuantity:   decimal.Zero,
		Status:             ItemStatusPending,
		ConfirmationStatus: ConfirmationStatusNone,
		Notes:              notes,
		Selections:         make([]InventorySelection, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Editable returns true while the provider has not decided on the item yet
func (i *MovementItem) Editable() bool {
	return i.Status == ItemStatusPending
}

// UpdateRequested changes the requested quantity while the movement is a draft
func (i *MovementItem) UpdateRequested(quantity decimal.Decimal, notes string) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	i.RequestedQuantity = quantity
	i.Notes = notes
	i.UpdatedAt = time.Now()
	return nil
}

// Approve grants the full requested quantity
func (i *MovementItem) Approve() error {
	if !i.Editable() {
		return shared.NewDomainError("ITEM_NOT_EDITABLE",
			fmt.Sprintf("Item %s has already been decided (%s)", i.ID, i.Status))
	}

	i.ApprovedQuantity = i.RequestedQuantity
	i.Status = ItemStatusApproved
	i.UpdatedAt = time.Now()
	return nil
}

// Reject denies the item and appends the reason to its notes
func (i *MovementItem) Reject(reason string) error {
	if !i.Editable() {
		return shared.NewDomainError("ITEM_NOT_EDITABLE",
			fmt.Sprintf("Item %s has already been decided (%s)", i.ID, i.Status))
	}

	i.ApprovedQuantity = decimal.Zero
	i.Status = ItemStatusRejected
	if reason != "" {
		i.Notes = appendNote(i.Notes, "Rejected: "+reason)
	}
	i.UpdatedAt = time.Now()
	return nil
}

// SetSelections binds the item to the chosen lots and records the provided
// quantity. Invariant: sum(selected) == ProvidedQuantity.
func (i *MovementItem) SetSelections(selections []InventorySelection) error {
	if i.Status != ItemStatusApproved {
		return shared.NewDomainError("INVALID_STATE", "Inventory can only be selected for approved items")
	}
	if len(selections) == 0 {
		return shared.NewDomainError("INVALID_SELECTION", "At least one lot must be selected")
	}

	total := decimal.Zero
	for _, sel := range selections {
		if sel.SelectedQuantity.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_QUANTITY", "Selected quantity must be positive")
		}
		total = total.Add(sel.SelectedQuantity)
	}
	if total.GreaterThan(i.ApprovedQuantity) {
		return shared.NewDomainError("QUANTITY_EXCEEDED",
			fmt.Sprintf("Cannot select %s, only %s approved", total.String(), i.ApprovedQuantity.String()))
	}

	for idx := range selections {
		selections[idx].MovementItemID = i.ID
	}
	i.Selections = selections
	i.ProvidedQuantity = total
	i.UpdatedAt = time.Now()
	return nil
}

// SelectedTotal returns the sum of all selection quantities
func (i *MovementItem) SelectedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, sel := range i.Selections {
		total = total.Add(sel.SelectedQuantity)
	}
	return total
}

// MarkSent records the amount actually deducted from the provider's lots
func (i *MovementItem) MarkSent(deducted decimal.Decimal) {
	i.SenderQuantity = deducted
	i.UpdatedAt = time.Now()
}

// Confirmed returns true once the requester has recorded a delivery verdict
func (i *MovementItem) Confirmed() bool {
	return i.ConfirmationStatus != ConfirmationStatusNone
}

// ConfirmGood records a full, intact delivery. The executed quantity settles
// to the approved quantity.
func (i *MovementItem) ConfirmGood() error {
	if i.Confirmed() {
		return shared.NewDomainError("ALREADY_CONFIRMED",
			fmt.Sprintf("Item %s delivery has already been confirmed (%s)", i.ID, i.ConfirmationStatus))
	}

	i.ConfirmationStatus = ConfirmationStatusGood
	i.ReceivedQuantity = i.SenderQuantity
	i.ExecutedQuantity = i.ApprovedQuantity
	i.UpdatedAt = time.Now()
	return nil
}

// ConfirmDamaged records a delivery that arrived unusable. Nothing is
// credited to the requester's inventory.
func (i *MovementItem) ConfirmDamaged(notes string) error {
	if i.Confirmed() {
		return shared.NewDomainError("ALREADY_CONFIRMED",
			fmt.Sprintf("Item %s delivery has already been confirmed (%s)", i.ID, i.ConfirmationStatus))
	}

	i.ConfirmationStatus = ConfirmationStatusDamaged
	i.ExecutedQuantity = decimal.Zero
	if notes != "" {
		i.ConfirmationNotes = appendNote(i.ConfirmationNotes, notes)
	}
	i.UpdatedAt = time.Now()
	return nil
}

// ConfirmShortfall records a partial delivery. Only the received portion is
// credited; the approved quantity is preserved for audit.
func (i *MovementItem) ConfirmShortfall(received decimal.Decimal) error {
	if i.Confirmed() {
		return shared.NewDomainError("ALREADY_CONFIRMED",
			fmt.Sprintf("Item %s delivery has already been confirmed (%s)", i.ID, i.ConfirmationStatus))
	}
	if received.LessThan(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Received quantity cannot be negative")
	}
	if received.GreaterThanOrEqual(i.SenderQuantity) {
		return shared.NewDomainError("INVALID_QUANTITY",
			fmt.Sprintf("Shortfall requires received (%s) below sent (%s)", received.String(), i.SenderQuantity.String()))
	}

	i.ConfirmationStatus = ConfirmationStatusManque
	i.ReceivedQuantity = received
	i.ExecutedQuantity = received
	i.UpdatedAt = time.Now()
	return nil
}

// Shortfall returns the undelivered portion after a manque confirmation
func (i *MovementItem) Shortfall() decimal.Decimal {
	short := i.SenderQuantity.Sub(i.ReceivedQuantity)
	if short.IsNegative() {
		return decimal.Zero
	}
	return short
}

// newShortageItem creates the bookkeeping row that tracks the undelivered
// portion of a shorted item. It carries no selections and no quantities
// besides the shortfall itself.
func newShortageItem(original *MovementItem, shortfall decimal.Decimal) *MovementItem {
	now := time.Now()
	return &MovementItem{
		ID:                 uuid.New(),
		MovementID:         original.MovementID,
		ProductID:          original.ProductID,
		RequestedQuantity:  shortfall,
		ApprovedQuantity:   decimal.Zero,
		ProvidedQuantity:   decimal.Zero,
		SenderQuantity:     decimal.Zero,
		ReceivedQuantity:   decimal.Zero,
		ExecutedQuantity:   decimal.Zero,
		Status:             ItemStatusApproved,
		ConfirmationStatus: ConfirmationStatusManque,
		ConfirmationNotes:  fmt.Sprintf("Shortfall of %s split from item %s", shortfall.String(), original.ID),
		Selections:         make([]InventorySelection, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func appendNote(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "\n" + note
}
