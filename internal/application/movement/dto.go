package movement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gestock/backend/internal/domain/movement"
)

// CreateMovementRequest represents a request to open a movement draft
type CreateMovementRequest struct {
	ProvidingServiceID uuid.UUID  `json:"providing_service_id" binding:"required"`
	Reason             string     `json:"reason"`
	ExpectedDelivery   *time.Time `json:"expected_delivery"`
}

// AddItemRequest represents a request to add a product line to a draft
type AddItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Notes     string          `json:"notes"`
}

// UpdateItemRequest represents a request to change a draft line
type UpdateItemRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Notes    string          `json:"notes"`
}

// DecideItemsRequest carries the item decisions of the providing service
type DecideItemsRequest struct {
	ItemIDs         []uuid.UUID `json:"item_ids" binding:"required,min=1"`
	RejectionReason string      `json:"rejection_reason"`
	Notes           string      `json:"notes"`
}

// SelectedLot is one lot chosen to cover part of an approved item
type SelectedLot struct {
	StockLotID uuid.UUID       `json:"stock_lot_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required,gt=0"`
}

// SelectInventoryRequest binds an approved item to provider lots
type SelectInventoryRequest struct {
	ItemID            uuid.UUID     `json:"item_id" binding:"required"`
	SelectedInventory []SelectedLot `json:"selected_inventory" binding:"required,min=1"`
}

// ConfirmDeliveryRequest records the receiving side's verdict for the whole delivery
type ConfirmDeliveryRequest struct {
	Status          string           `json:"status" binding:"required,oneof=good damaged manque"`
	Notes           string           `json:"notes"`
	MissingQuantity *decimal.Decimal `json:"missing_quantity"`
}

// ConfirmProductRequest records the receiving side's verdict for a single item
type ConfirmProductRequest struct {
	ItemID           uuid.UUID        `json:"item_id" binding:"required"`
	Status           string           `json:"status" binding:"required,oneof=good damaged manque"`
	ReceivedQuantity *decimal.Decimal `json:"received_quantity"`
}

// QuantityEntryRequest is one received-quantity declaration
type QuantityEntryRequest struct {
	ItemID           uuid.UUID       `json:"item_id" binding:"required"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
}

// ValidateQuantitiesRequest asks for a dry-run classification of received quantities
type ValidateQuantitiesRequest struct {
	Items []QuantityEntryRequest `json:"items" binding:"required,min=1"`
}

// ProcessValidationRequest settles received quantities against sent quantities
type ProcessValidationRequest struct {
	Validations []QuantityEntryRequest `json:"validations" binding:"required,min=1"`
}

// FinalizeConfirmationRequest closes a fully confirmed movement
type FinalizeConfirmationRequest struct {
	Notes string `json:"notes"`
}

// MovementListFilter represents filter options for the movement list
type MovementListFilter struct {
	Status    string     `form:"status"`
	ServiceID *uuid.UUID `form:"service_id"`
	Direction string     `form:"direction" binding:"omitempty,oneof=incoming outgoing"`
	Search    string     `form:"search"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// SelectionResponse represents one lot binding in API responses
type SelectionResponse struct {
	ID               uuid.UUID       `json:"id"`
	StockLotID       uuid.UUID       `json:"stock_lot_id"`
	SelectedQuantity decimal.Decimal `json:"selected_quantity"`
	BatchNumber      string          `json:"batch_number,omitempty"`
	SerialNumber     string          `json:"serial_number,omitempty"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
}

// ItemResponse represents a movement item in API responses
type ItemResponse struct {
	ID                 uuid.UUID           `json:"id"`
	ProductID          uuid.UUID           `json:"product_id"`
	Status             string              `json:"status"`
	RequestedQuantity  decimal.Decimal     `json:"requested_quantity"`
	ApprovedQuantity   decimal.Decimal     `json:"approved_quantity"`
	ProvidedQuantity   decimal.Decimal     `json:"provided_quantity"`
	SenderQuantity     decimal.Decimal     `json:"sender_quantity"`
	ReceivedQuantity   decimal.Decimal     `json:"received_quantity"`
	ExecutedQuantity   decimal.Decimal     `json:"executed_quantity"`
	ConfirmationStatus string              `json:"confirmation_status,omitempty"`
	ConfirmationNotes  string              `json:"confirmation_notes,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	Selections         []SelectionResponse `json:"selections,omitempty"`
}

// MovementResponse represents a movement request in API responses
type MovementResponse struct {
	ID                  uuid.UUID       `json:"id"`
	MovementNumber      string          `json:"movement_number"`
	Status              string          `json:"status"`
	RequestingServiceID uuid.UUID       `json:"requesting_service_id"`
	ProvidingServiceID  uuid.UUID       `json:"providing_service_id"`
	RequestingUserID    uuid.UUID       `json:"requesting_user_id"`
	ApprovingUserID     *uuid.UUID      `json:"approving_user_id,omitempty"`
	RequestReason       string          `json:"request_reason,omitempty"`
	ApprovalNotes       string          `json:"approval_notes,omitempty"`
	ExpectedDelivery    *time.Time      `json:"expected_delivery,omitempty"`
	RequestedAt         *time.Time      `json:"requested_at,omitempty"`
	TransferInitiatedAt *time.Time      `json:"transfer_initiated_at,omitempty"`
	DeliveryConfirmedAt *time.Time      `json:"delivery_confirmed_at,omitempty"`
	DeliveryNotes       string          `json:"delivery_notes,omitempty"`
	MissingQuantity     decimal.Decimal `json:"missing_quantity"`
	Items               []ItemResponse  `json:"items"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Version             int             `json:"version"`
}

// MovementListItemResponse represents a movement in list responses
type MovementListItemResponse struct {
	ID                  uuid.UUID  `json:"id"`
	MovementNumber      string     `json:"movement_number"`
	Status              string     `json:"status"`
	RequestingServiceID uuid.UUID  `json:"requesting_service_id"`
	ProvidingServiceID  uuid.UUID  `json:"providing_service_id"`
	ItemCount           int        `json:"item_count"`
	RequestedAt         *time.Time `json:"requested_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// QuantityCheckResponse is the dry-run classification of one received quantity
type QuantityCheckResponse struct {
	ItemID           uuid.UUID       `json:"item_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	SenderQuantity   decimal.Decimal `json:"sender_quantity"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	Classification   string          `json:"classification"`
	Shortfall        decimal.Decimal `json:"shortfall"`
}

// MovementStatsResponse summarizes the quantity lifecycle of one movement
type MovementStatsResponse struct {
	MovementNumber    string          `json:"movement_number"`
	Status            string          `json:"status"`
	ItemCount         int             `json:"item_count"`
	ApprovedItems     int             `json:"approved_items"`
	RejectedItems     int             `json:"rejected_items"`
	PendingItems      int             `json:"pending_items"`
	ConfirmedItems    int             `json:"confirmed_items"`
	TotalRequested    decimal.Decimal `json:"total_requested"`
	TotalApproved     decimal.Decimal `json:"total_approved"`
	TotalSent         decimal.Decimal `json:"total_sent"`
	TotalReceived     decimal.Decimal `json:"total_received"`
	TotalExecuted     decimal.Decimal `json:"total_executed"`
	MissingQuantity   decimal.Decimal `json:"missing_quantity"`
	FulfillmentRate   decimal.Decimal `json:"fulfillment_rate"`
}

// ToSelectionResponse converts a domain selection to its API representation
func ToSelectionResponse(sel *movement.InventorySelection) SelectionResponse {
	return SelectionResponse{
		ID:               sel.ID,
		StockLotID:       sel.StockLotID,
		SelectedQuantity: sel.SelectedQuantity,
		BatchNumber:      sel.BatchNumber,
		SerialNumber:     sel.SerialNumber,
		ExpiryDate:       sel.ExpiryDate,
	}
}

// ToItemResponse converts a domain item to its API representation
func ToItemResponse(item *movement.MovementItem) ItemResponse {
	selections := make([]SelectionResponse, 0, len(item.Selections))
	for idx := range item.Selections {
		selections = append(selections, ToSelectionResponse(&item.Selections[idx]))
	}
	return ItemResponse{
		ID:                 item.ID,
		ProductID:          item.ProductID,
		Status:             item.Status.String(),
		RequestedQuantity:  item.RequestedQuantity,
		ApprovedQuantity:   item.ApprovedQuantity,
		ProvidedQuantity:   item.ProvidedQuantity,
		SenderQuantity:     item.SenderQuantity,
		ReceivedQuantity:   item.ReceivedQuantity,
		ExecutedQuantity:   item.ExecutedQuantity,
		ConfirmationStatus: item.ConfirmationStatus.String(),
		ConfirmationNotes:  item.ConfirmationNotes,
		Notes:              item.Notes,
		Selections:         selections,
	}
}

// ToMovementResponse converts a domain movement to its API representation
func ToMovementResponse(m *movement.MovementRequest) MovementResponse {
	items := make([]ItemResponse, 0, len(m.Items))
	for idx := range m.Items {
		items = append(items, ToItemResponse(&m.Items[idx]))
	}
	return MovementResponse{
		ID:                  m.ID,
		MovementNumber:      m.MovementNumber,
		Status:              m.Status.String(),
		RequestingServiceID: m.RequestingServiceID,
		ProvidingServiceID:  m.ProvidingServiceID,
		RequestingUserID:    m.RequestingUserID,
		ApprovingUserID:     m.ApprovingUserID,
		RequestReason:       m.RequestReason,
		ApprovalNotes:       m.ApprovalNotes,
		ExpectedDelivery:    m.ExpectedDeliveryDate,
		RequestedAt:         m.RequestedAt,
		TransferInitiatedAt: m.TransferInitiatedAt,
		DeliveryConfirmedAt: m.DeliveryConfirmedAt,
		DeliveryNotes:       m.DeliveryNotes,
		MissingQuantity:     m.MissingQuantity,
		Items:               items,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		Version:             m.Version,
	}
}

// ToMovementListItemResponse converts a domain movement to its list representation
func ToMovementListItemResponse(m *movement.MovementRequest) MovementListItemResponse {
	return MovementListItemResponse{
		ID:                  m.ID,
		MovementNumber:      m.MovementNumber,
		Status:              m.Status.String(),
		RequestingServiceID: m.RequestingServiceID,
		ProvidingServiceID:  m.ProvidingServiceID,
		ItemCount:           len(m.Items),
		RequestedAt:         m.RequestedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// ToStatsResponse aggregates per-item quantities into movement statistics
func ToStatsResponse(m *movement.MovementRequest) MovementStatsResponse {
	stats := MovementStatsResponse{
		MovementNumber:  m.MovementNumber,
		Status:          m.Status.String(),
		ItemCount:       len(m.Items),
		TotalRequested:  decimal.Zero,
		TotalApproved:   decimal.Zero,
		TotalSent:       decimal.Zero,
		TotalReceived:   decimal.Zero,
		TotalExecuted:   decimal.Zero,
		MissingQuantity: m.MissingQuantity,
		FulfillmentRate: decimal.Zero,
	}
	for idx := range m.Items {
		item := &m.Items[idx]
		switch item.Status {
		case movement.ItemStatusApproved:
			stats.ApprovedItems++
		case movement.ItemStatusRejected:
			stats.RejectedItems++
		default:
			stats.PendingItems++
		}
		if item.Confirmed() {
			stats.ConfirmedItems++
		}
		stats.TotalRequested = stats.TotalRequested.Add(item.RequestedQuantity)
		stats.TotalApproved = stats.TotalApproved.Add(item.ApprovedQuantity)
		stats.TotalSent = stats.TotalSent.Add(item.SenderQuantity)
		stats.TotalReceived = stats.TotalReceived.Add(item.ReceivedQuantity)
		stats.TotalExecuted = stats.TotalExecuted.Add(item.ExecutedQuantity)
	}
	if stats.TotalApproved.IsPositive() {
		stats.FulfillmentRate = stats.TotalExecuted.Div(stats.TotalApproved).Round(4)
	}
	return stats
}
