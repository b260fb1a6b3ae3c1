package movement

import (
	"github.com/gestock/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types for the movement workflow
const (
	EventTypeMovementSent      = "movement.sent"
	EventTypeItemsDecided      = "movement.items_decided"
	EventTypeTransferInitiated = "movement.transfer_initiated"
	EventTypeDeliveryConfirmed = "movement.delivery_confirmed"
)

const aggregateTypeMovement = "MovementRequest"

// MovementSentEvent is published when a draft is submitted for approval
type MovementSentEvent struct {
	shared.BaseDomainEvent
	MovementNumber      string    `json:"movement_number"`
	RequestingServiceID uuid.UUID `json:"requesting_service_id"`
	ProvidingServiceID  uuid.UUID `json:"providing_service_id"`
	ItemCount           int       `json:"item_count"`
}

// NewMovementSentEvent creates a new MovementSentEvent
func NewMovementSentEvent(m *MovementRequest) *MovementSentEvent {
	return &MovementSentEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeMovementSent, m.ID, aggregateTypeMovement, m.TenantID),
		MovementNumber:      m.MovementNumber,
		RequestingServiceID: m.RequestingServiceID,
		ProvidingServiceID:  m.ProvidingServiceID,
		ItemCount:           len(m.Items),
	}
}

// ItemsDecidedEvent is published after an approve/reject pass over items
type ItemsDecidedEvent struct {
	shared.BaseDomainEvent
	MovementNumber string      `json:"movement_number"`
	ItemIDs        []uuid.UUID `json:"item_ids"`
	Status         string      `json:"status"`
}

// NewItemsDecidedEvent creates a new ItemsDecidedEvent
func NewItemsDecidedEvent(m *MovementRequest, itemIDs []uuid.UUID) *ItemsDecidedEvent {
	return &ItemsDecidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemsDecided, m.ID, aggregateTypeMovement, m.TenantID),
		MovementNumber:  m.MovementNumber,
		ItemIDs:         itemIDs,
		Status:          m.Status.String(),
	}
}

// TransferInitiatedEvent is published when provider stock has been deducted
type TransferInitiatedEvent struct {
	shared.BaseDomainEvent
	MovementNumber     string    `json:"movement_number"`
	ProvidingServiceID uuid.UUID `json:"providing_service_id"`
}

// NewTransferInitiatedEvent creates a new TransferInitiatedEvent
func NewTransferInitiatedEvent(m *MovementRequest) *TransferInitiatedEvent {
	return &TransferInitiatedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeTransferInitiated, m.ID, aggregateTypeMovement, m.TenantID),
		MovementNumber:     m.MovementNumber,
		ProvidingServiceID: m.ProvidingServiceID,
	}
}

// DeliveryConfirmedEvent is published when the movement reaches a terminal
// delivery status
type DeliveryConfirmedEvent struct {
	shared.BaseDomainEvent
	MovementNumber      string    `json:"movement_number"`
	RequestingServiceID uuid.UUID `json:"requesting_service_id"`
	Status              string    `json:"status"`
	MissingQuantity     string    `json:"missing_quantity"`
}

// NewDeliveryConfirmedEvent creates a new DeliveryConfirmedEvent
func NewDeliveryConfirmedEvent(m *MovementRequest) *DeliveryConfirmedEvent {
	return &DeliveryConfirmedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeDeliveryConfirmed, m.ID, aggregateTypeMovement, m.TenantID),
		MovementNumber:      m.MovementNumber,
		RequestingServiceID: m.RequestingServiceID,
		Status:              m.Status.String(),
		MissingQuantity:     m.MissingQuantity.String(),
	}
}
