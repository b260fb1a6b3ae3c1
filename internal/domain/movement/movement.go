package movement

import (
	"fmt"
	"time"

	"github.com/gestock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementStatus represents the status of a movement request
type MovementStatus string

const (
	MovementStatusDraft              MovementStatus = "DRAFT"
	MovementStatusPending            MovementStatus = "PENDING"
	MovementStatusApproved           MovementStatus = "APPROVED"
	MovementStatusPartiallyApproved  MovementStatus = "PARTIALLY_APPROVED"
	MovementStatusRejected           MovementStatus = "REJECTED"
	MovementStatusInTransfer         MovementStatus = "IN_TRANSFER"
	MovementStatusFulfilled          MovementStatus = "FULFILLED"
	MovementStatusPartiallyFulfilled MovementStatus = "PARTIALLY_FULFILLED"
	MovementStatusDamaged            MovementStatus = "DAMAGED"
	MovementStatusUnfulfilled        MovementStatus = "UNFULFILLED"
)

// IsValid checks if the status is a valid MovementStatus
func (s MovementStatus) IsValid() bool {
	switch s {
	case MovementStatusDraft, MovementStatusPending, MovementStatusApproved,
		MovementStatusPartiallyApproved, MovementStatusRejected, MovementStatusInTransfer,
		MovementStatusFulfilled, MovementStatusPartiallyFulfilled,
		MovementStatusDamaged, MovementStatusUnfulfilled:
		return true
	}
	return false
}

// String returns the string representation of MovementStatus
func (s MovementStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses with no outgoing transitions
func (s MovementStatus) IsTerminal() bool {
	switch s {
	case MovementStatusRejected, MovementStatusFulfilled, MovementStatusPartiallyFulfilled,
		MovementStatusDamaged, MovementStatusUnfulfilled:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status.
// The workflow never moves backward.
func (s MovementStatus) CanTransitionTo(target MovementStatus) bool {
	switch s {
	case MovementStatusDraft:
		return target == MovementStatusPending
	case MovementStatusPending:
		return target == MovementStatusApproved || target == MovementStatusPartiallyApproved ||
			target == MovementStatusRejected
	case MovementStatusPartiallyApproved:
		// Remaining pending items may still be decided, or the transfer may start.
		return target == MovementStatusApproved || target == MovementStatusPartiallyApproved ||
			target == MovementStatusRejected || target == MovementStatusInTransfer
	case MovementStatusApproved:
		return target == MovementStatusInTransfer
	case MovementStatusInTransfer:
		return target == MovementStatusFulfilled || target == MovementStatusPartiallyFulfilled ||
			target == MovementStatusDamaged || target == MovementStatusUnfulfilled
	}
	return false
}

// CanDecideItems returns true if approve/reject operations are allowed
func (s MovementStatus) CanDecideItems() bool {
	return s == MovementStatusPending || s == MovementStatusPartiallyApproved
}

// CanInitiateTransfer returns true if the physical transfer may start
func (s MovementStatus) CanInitiateTransfer() bool {
	return s == MovementStatusApproved || s == MovementStatusPartiallyApproved
}

// Actor identifies who performs an operation and on behalf of which
// organizational service. It is passed explicitly into every workflow
// operation instead of being read from ambient session state.
type Actor struct {
	UserID    uuid.UUID
	ServiceID uuid.UUID
}

// LotCredit describes a destination lot to be created at the requester's
// service when a delivery is confirmed. Credits are always new lots and are
// never merged into existing stock.
type LotCredit struct {
	ProductID    uuid.UUID
	Quantity     decimal.Decimal
	BatchNumber  string
	SerialNumber string
	ExpiryDate   *time.Time
}

// QuantityCheck is the result of comparing a reported received quantity
// against the sender quantity for one item
type QuantityCheck struct {
	ItemID         uuid.UUID
	ProductID      uuid.UUID
	SenderQuantity decimal.Decimal
	Received       decimal.Decimal
	Classification string // "good" or "insufficient"
	Shortfall      decimal.Decimal
}

// QuantityEntry is one per-item received quantity reported by the requester
type QuantityEntry struct {
	ItemID   uuid.UUID
	Received decimal.Decimal
}

// MovementRequest is the workflow aggregate for one inter-service stock
// transfer. It owns the status, timestamps and the item collection and
// drives every state transition.
type MovementRequest struct {
	shared.TenantAggregateRoot
	MovementNumber      string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_movement_tenant_number,priority:2"`
	RequestingServiceID uuid.UUID      `gorm:"type:uuid;not null;index"`
	ProvidingServiceID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	RequestingUserID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Status              MovementStatus `gorm:"type:varchar(30);not null;default:'DRAFT'"`
	RequestReason       string         `gorm:"type:varchar(500)"`
	ExpectedDeliveryDate *time.Time
	RequestedAt          *time.Time
	ApprovingUserID      *uuid.UUID `gorm:"type:uuid"`
	ApprovalNotes        string     `gorm:"type:varchar(500)"`
	TransferInitiatedAt  *time.Time
	TransferInitiatedBy  *uuid.UUID `gorm:"type:uuid"`
	DeliveryConfirmedAt  *time.Time
	DeliveryConfirmedBy  *uuid.UUID      `gorm:"type:uuid"`
	DeliveryNotes        string          `gorm:"type:varchar(500)"`
	MissingQuantity      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Items                []MovementItem  `gorm:"foreignKey:MovementID;references:ID"`
}

// TableName returns the table name for GORM
func (MovementRequest) TableName() string {
	return "movement_requests"
}

// NewMovementRequest creates a new draft movement between two services.
// The requesting and providing services must differ.
func NewMovementRequest(tenantID uuid.UUID, movementNumber string, requestingServiceID, providingServiceID, requestingUserID uuid.UUID, reason string, expectedDelivery *time.Time) (*MovementRequest, error) {
	if movementNumber == "" {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_NUMBER", "Movement number cannot be empty")
	}
	if requestingServiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SERVICE", "Requesting service ID cannot be empty")
	}
	if providingServiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SERVICE", "Providing service ID cannot be empty")
	}
	if requestingServiceID == providingServiceID {
		return nil, shared.NewDomainError("SAME_SERVICE", "Requesting and providing services must differ")
	}
	if requestingUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Requesting user ID cannot be empty")
	}

	m := &MovementRequest{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		MovementNumber:       movementNumber,
		RequestingServiceID:  requestingServiceID,
		ProvidingServiceID:   providingServiceID,
		RequestingUserID:     requestingUserID,
		Status:               MovementStatusDraft,
		RequestReason:        reason,
		ExpectedDeliveryDate: expectedDelivery,
		MissingQuantity:      decimal.Zero,
		Items:                make([]MovementItem, 0),
	}

	return m, nil
}

// AuthorizeOwner verifies the actor is the requesting user who owns the draft
func (m *MovementRequest) AuthorizeOwner(actor Actor) error {
	if actor.UserID != m.RequestingUserID {
		return shared.NewDomainError("FORBIDDEN", "Only the requesting user may modify this draft")
	}
	return nil
}

// AuthorizeRequester verifies the actor belongs to the requesting service
func (m *MovementRequest) AuthorizeRequester(actor Actor) error {
	if actor.ServiceID != m.RequestingServiceID {
		return shared.NewDomainError("FORBIDDEN", "Actor does not belong to the requesting service")
	}
	return nil
}

// AuthorizeProvider verifies the actor belongs to the providing service
func (m *MovementRequest) AuthorizeProvider(actor Actor) error {
	if actor.ServiceID != m.ProvidingServiceID {
		return shared.NewDomainError("FORBIDDEN", "Actor does not belong to the providing service")
	}
	return nil
}

// IsDraft returns true while the movement is still being composed
func (m *MovementRequest) IsDraft() bool {
	return m.Status == MovementStatusDraft
}

// AddItem adds a product line to the draft. Adding a product that is already
// in the movement merges into an update of the existing line instead of
// inserting a duplicate row.
func (m *MovementRequest) AddItem(productID uuid.UUID, quantity decimal.Decimal, notes string) (*MovementItem, error) {
	if !m.IsDraft() {
		return nil, shared.NewDomainError("INVALID_STATE", "Items can only be added while the movement is a draft")
	}

	for idx := range m.Items {
		if m.Items[idx].ProductID == productID {
			if err := m.Items[idx].UpdateRequested(quantity, notes); err != nil {
				return nil, err
			}
			m.touch()
			return &m.Items[idx], nil
		}
	}

	item, err := NewMovementItem(m.ID, productID, quantity, notes)
	if err != nil {
		return nil, err
	}

	m.Items = append(m.Items, *item)
	m.touch()
	return item, nil
}

// UpdateItem changes the requested quantity of an existing draft line
func (m *MovementRequest) UpdateItem(itemID uuid.UUID, quantity decimal.Decimal, notes string) error {
	if !m.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Items can only be updated while the movement is a draft")
	}

	for idx := range m.Items {
		if m.Items[idx].ID == itemID {
			if err := m.Items[idx].UpdateRequested(quantity, notes); err != nil {
				return err
			}
			m.touch()
			return nil
		}
	}

	return shared.NewDomainError("ITEM_NOT_FOUND", "Movement item not found")
}

// RemoveItem removes a line from the draft
func (m *MovementRequest) RemoveItem(itemID uuid.UUID) error {
	if !m.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Items can only be removed while the movement is a draft")
	}

	for idx, item := range m.Items {
		if item.ID == itemID {
			m.Items = append(m.Items[:idx], m.Items[idx+1:]...)
			m.touch()
			return nil
		}
	}

	return shared.NewDomainError("ITEM_NOT_FOUND", "Movement item not found")
}

// Send submits the draft to the providing service for approval
func (m *MovementRequest) Send() error {
	if !m.Status.CanTransitionTo(MovementStatusPending) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot send movement in %s status", m.Status))
	}
	if len(m.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot send a movement without items")
	}

	now := time.Now()
	m.Status = MovementStatusPending
	m.RequestedAt = &now
	m.touch()

	m.AddDomainEvent(NewMovementSentEvent(m))
	return nil
}

// ApproveItems grants the full requested quantity on the given items and
// recomputes the aggregate approval status
func (m *MovementRequest) ApproveItems(itemIDs []uuid.UUID, approver uuid.UUID, notes string) error {
	return m.decideItems(itemIDs, approver, notes, func(item *MovementItem) error {
		return item.Approve()
	})
}

// RejectItems denies the given items with a reason and recomputes the
// aggregate approval status
func (m *MovementRequest) RejectItems(itemIDs []uuid.UUID, approver uuid.UUID, reason string) error {
	return m.decideItems(itemIDs, approver, "", func(item *MovementItem) error {
		return item.Reject(reason)
	})
}

func (m *MovementRequest) decideItems(itemIDs []uuid.UUID, approver uuid.UUID, notes string, decide func(*MovementItem) error) error {
	if !m.Status.CanDecideItems() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot decide items on a movement in %s status", m.Status))
	}
	if len(itemIDs) == 0 {
		return shared.NewDomainError("NO_ITEMS", "No item IDs provided")
	}

	for _, id := range itemIDs {
		item := m.findItem(id)
		if item == nil {
			return shared.NewDomainError("ITEM_NOT_FOUND",
				fmt.Sprintf("Movement item %s not found", id))
		}
		if err := decide(item); err != nil {
			return err
		}
	}

	m.ApprovingUserID = &approver
	if notes != "" {
		m.ApprovalNotes = appendNote(m.ApprovalNotes, notes)
	}
	m.recomputeApprovalStatus()
	m.touch()

	m.AddDomainEvent(NewItemsDecidedEvent(m, itemIDs))
	return nil
}

// recomputeApprovalStatus derives the aggregate status from the item
// decisions: all approved -> APPROVED, all rejected -> REJECTED, any mix
// (including still-pending items) -> PARTIALLY_APPROVED.
func (m *MovementRequest) recomputeApprovalStatus() {
	approved, rejected := 0, 0
	for idx := range m.Items {
		switch m.Items[idx].Status {
		case ItemStatusApproved:
			approved++
		case ItemStatusRejected:
			rejected++
		}
	}

	switch {
	case approved == len(m.Items):
		m.Status = MovementStatusApproved
	case rejected == len(m.Items):
		m.Status = MovementStatusRejected
	default:
		m.Status = MovementStatusPartiallyApproved
	}
}

// SelectInventory binds an approved item to the chosen provider lots
func (m *MovementRequest) SelectInventory(itemID uuid.UUID, selections []InventorySelection) error {
	if !m.Status.CanInitiateTransfer() && !m.Status.CanDecideItems() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot select inventory on a movement in %s status", m.Status))
	}

	item := m.findItem(itemID)
	if item == nil {
		return shared.NewDomainError("ITEM_NOT_FOUND", "Movement item not found")
	}

	if err := item.SetSelections(selections); err != nil {
		return err
	}
	m.touch()
	return nil
}

// BeginTransfer flips the movement to IN_TRANSFER once every selected lot
// has been deducted. deductions maps item IDs to the amounts actually
// removed from the provider's lots.
func (m *MovementRequest) BeginTransfer(actorUserID uuid.UUID, deductions map[uuid.UUID]decimal.Decimal) error {
	if !m.Status.CanInitiateTransfer() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot initialize transfer on a movement in %s status", m.Status))
	}

	for idx := range m.Items {
		item := &m.Items[idx]
		if item.Status != ItemStatusApproved {
			continue
		}
		if len(item.Selections) == 0 {
			return shared.NewDomainError("INCOMPLETE_SELECTION",
				fmt.Sprintf("No inventory selected for product %s", item.ProductID))
		}
		deducted, ok := deductions[item.ID]
		if !ok {
			return shared.NewDomainError("INCOMPLETE_SELECTION",
				fmt.Sprintf("No deduction recorded for product %s", item.ProductID))
		}
		item.MarkSent(deducted)
	}

	now := time.Now()
	m.Status = MovementStatusInTransfer
	m.TransferInitiatedAt = &now
	m.TransferInitiatedBy = &actorUserID
	m.touch()

	m.AddDomainEvent(NewTransferInitiatedEvent(m))
	return nil
}

// ConfirmProduct records the delivery verdict for one item and returns the
// destination lots to be credited to the requester's inventory.
// A shortfall splits a new manque item tracking the undelivered portion;
// the original approved quantity is preserved for audit.
func (m *MovementRequest) ConfirmProduct(itemID uuid.UUID, outcome ConfirmationStatus, received *decimal.Decimal) ([]LotCredit, error) {
	if m.Status != MovementStatusInTransfer {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot confirm products on a movement in %s status", m.Status))
	}
	if !outcome.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Unknown confirmation outcome %q", outcome))
	}

	item := m.findItem(itemID)
	if item == nil {
		return nil, shared.NewDomainError("ITEM_NOT_FOUND", "Movement item not found")
	}

	credits, err := m.confirmItem(item, outcome, received)
	if err != nil {
		return nil, err
	}
	m.touch()
	return credits, nil
}

func (m *MovementRequest) confirmItem(item *MovementItem, outcome ConfirmationStatus, received *decimal.Decimal) ([]LotCredit, error) {
	switch outcome {
	case ConfirmationStatusGood:
		if err := item.ConfirmGood(); err != nil {
			return nil, err
		}
		return creditsForQuantity(item, item.SenderQuantity), nil

	case ConfirmationStatusDamaged:
		return nil, item.ConfirmDamaged("")

	case ConfirmationStatusManque:
		if received == nil {
			return nil, shared.NewDomainError("INVALID_INPUT", "Received quantity is required for a shortfall")
		}
		if err := item.ConfirmShortfall(*received); err != nil {
			return nil, err
		}
		shortfall := item.Shortfall()
		m.Items = append(m.Items, *newShortageItem(item, shortfall))
		m.MissingQuantity = m.MissingQuantity.Add(shortfall)
		return creditsForQuantity(item, *received), nil
	}
	return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown confirmation outcome %q", outcome))
}

// ConfirmDelivery applies one verdict to every unconfirmed item, stamps the
// delivery metadata and settles the movement into its terminal status.
// For a shortfall the missing quantity is consumed from the items in order.
func (m *MovementRequest) ConfirmDelivery(actorUserID uuid.UUID, outcome ConfirmationStatus, notes string, missing *decimal.Decimal) ([]LotCredit, error) {
	if m.Status != MovementStatusInTransfer {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot confirm delivery on a movement in %s status", m.Status))
	}
	if !outcome.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Unknown confirmation outcome %q", outcome))
	}

	remainingMissing := decimal.Zero
	if outcome == ConfirmationStatusManque {
		if missing == nil || missing.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_INPUT", "Missing quantity is required for a shortfall delivery")
		}
		remainingMissing = *missing
	}

	credits := make([]LotCredit, 0)
	// Snapshot the item count: shortfall confirmations append shortage rows.
	itemCount := len(m.Items)
	for idx := 0; idx < itemCount; idx++ {
		item := &m.Items[idx]
		if item.Confirmed() || item.Status != ItemStatusApproved {
			continue
		}

		itemOutcome := outcome
		var received *decimal.Decimal
		if outcome == ConfirmationStatusManque {
			if remainingMissing.IsZero() {
				itemOutcome = ConfirmationStatusGood
			} else {
				got := item.SenderQuantity.Sub(remainingMissing)
				if got.IsNegative() {
					got = decimal.Zero
				}
				remainingMissing = remainingMissing.Sub(item.SenderQuantity.Sub(got))
				received = &got
			}
		}

		itemCredits, err := m.confirmItem(item, itemOutcome, received)
		if err != nil {
			return nil, err
		}
		credits = append(credits, itemCredits...)
	}

	now := time.Now()
	m.DeliveryConfirmedAt = &now
	m.DeliveryConfirmedBy = &actorUserID
	if notes != "" {
		m.DeliveryNotes = appendNote(m.DeliveryNotes, notes)
	}
	if err := m.finalizeStatus(); err != nil {
		return nil, err
	}
	m.touch()

	m.AddDomainEvent(NewDeliveryConfirmedEvent(m))
	return credits, nil
}

// ValidateQuantities compares reported received quantities against the
// sender quantities without mutating anything
func (m *MovementRequest) ValidateQuantities(entries []QuantityEntry) ([]QuantityCheck, error) {
	if m.Status != MovementStatusInTransfer {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot validate quantities on a movement in %s status", m.Status))
	}

	checks := make([]QuantityCheck, 0, len(entries))
	for _, entry := range entries {
		item := m.findItem(entry.ItemID)
		if item == nil {
			return nil, shared.NewDomainError("ITEM_NOT_FOUND",
				fmt.Sprintf("Movement item %s not found", entry.ItemID))
		}

		check := QuantityCheck{
			ItemID:         item.ID,
			ProductID:      item.ProductID,
			SenderQuantity: item.SenderQuantity,
			Received:       entry.Received,
			Classification: "good",
			Shortfall:      decimal.Zero,
		}
		if entry.Received.LessThan(item.SenderQuantity) {
			check.Classification = "insufficient"
			check.Shortfall = item.SenderQuantity.Sub(entry.Received)
		}
		checks = append(checks, check)
	}
	return checks, nil
}

// ProcessValidation settles the reported received quantities: a quantity at
// or above the sender amount confirms the item good; a lower quantity
// records a shortfall and splits a new manque item for the missing portion.
func (m *MovementRequest) ProcessValidation(entries []QuantityEntry) ([]LotCredit, error) {
	if m.Status != MovementStatusInTransfer {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot process validation on a movement in %s status", m.Status))
	}

	credits := make([]LotCredit, 0)
	for _, entry := range entries {
		item := m.findItem(entry.ItemID)
		if item == nil {
			return nil, shared.NewDomainError("ITEM_NOT_FOUND",
				fmt.Sprintf("Movement item %s not found", entry.ItemID))
		}

		outcome := ConfirmationStatusGood
		var received *decimal.Decimal
		if entry.Received.LessThan(item.SenderQuantity) {
			outcome = ConfirmationStatusManque
			r := entry.Received
			received = &r
		}

		itemCredits, err := m.confirmItem(item, outcome, received)
		if err != nil {
			return nil, err
		}
		credits = append(credits, itemCredits...)
	}

	m.touch()
	return credits, nil
}

// FinalizeConfirmation settles the movement into its terminal status once
// every item carries a delivery verdict
func (m *MovementRequest) FinalizeConfirmation(actorUserID uuid.UUID, notes string) error {
	if m.Status != MovementStatusInTransfer {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot finalize a movement in %s status", m.Status))
	}

	for idx := range m.Items {
		item := &m.Items[idx]
		if item.Status == ItemStatusApproved && !item.Confirmed() {
			return shared.NewDomainError("UNCONFIRMED_ITEMS",
				fmt.Sprintf("Product %s has no delivery verdict yet", item.ProductID))
		}
	}

	now := time.Now()
	m.DeliveryConfirmedAt = &now
	m.DeliveryConfirmedBy = &actorUserID
	if notes != "" {
		m.DeliveryNotes = appendNote(m.DeliveryNotes, notes)
	}
	if err := m.finalizeStatus(); err != nil {
		return err
	}
	m.touch()

	m.AddDomainEvent(NewDeliveryConfirmedEvent(m))
	return nil
}

// finalizeStatus computes the terminal status as a pure function of the
// multiset of item confirmation statuses:
// all good -> FULFILLED; some good -> PARTIALLY_FULFILLED;
// none good but some damaged -> DAMAGED; otherwise -> UNFULFILLED.
func (m *MovementRequest) finalizeStatus() error {
	good, damaged, total := 0, 0, 0
	for idx := range m.Items {
		item := &m.Items[idx]
		if item.Status != ItemStatusApproved && item.ConfirmationStatus == ConfirmationStatusNone {
			continue // rejected lines carry no delivery verdict
		}
		total++
		switch item.ConfirmationStatus {
		case ConfirmationStatusGood:
			good++
		case ConfirmationStatusDamaged:
			damaged++
		}
	}

	var target MovementStatus
	switch {
	case total > 0 && good == total:
		target = MovementStatusFulfilled
	case good > 0:
		target = MovementStatusPartiallyFulfilled
	case damaged > 0:
		target = MovementStatusDamaged
	default:
		target = MovementStatusUnfulfilled
	}

	if !m.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot transition movement from %s to %s", m.Status, target))
	}
	m.Status = target
	return nil
}

// FindItem returns the item with the given ID, or nil
func (m *MovementRequest) FindItem(itemID uuid.UUID) *MovementItem {
	return m.findItem(itemID)
}

func (m *MovementRequest) findItem(itemID uuid.UUID) *MovementItem {
	for idx := range m.Items {
		if m.Items[idx].ID == itemID {
			return &m.Items[idx]
		}
	}
	return nil
}

// creditsForQuantity allocates a received quantity across the item's
// selections in order, mirroring each selection's lot attributes
func creditsForQuantity(item *MovementItem, quantity decimal.Decimal) []LotCredit {
	credits := make([]LotCredit, 0, len(item.Selections))
	remaining := quantity
	for _, sel := range item.Selections {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		credit := sel.SelectedQuantity
		if credit.GreaterThan(remaining) {
			credit = remaining
		}
		credits = append(credits, LotCredit{
			ProductID:    item.ProductID,
			Quantity:     credit,
			BatchNumber:  sel.BatchNumber,
			SerialNumber: sel.SerialNumber,
			ExpiryDate:   sel.ExpiryDate,
		})
		remaining = remaining.Sub(credit)
	}
	return credits
}

func (m *MovementRequest) touch() {
	m.UpdatedAt = time.Now()
	m.IncrementVersion()
}
