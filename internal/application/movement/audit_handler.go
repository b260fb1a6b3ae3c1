package movement

import (
	"context"

	"go.uber.org/zap"

	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/domain/shared"
)

// MovementAuditHandler records an audit trail entry for every movement
// lifecycle event. Entries go to the structured log so the approval and
// delivery history of a movement can be reconstructed per tenant.
type MovementAuditHandler struct {
	logger *zap.Logger
}

// NewMovementAuditHandler creates a new audit handler for movement events
func NewMovementAuditHandler(logger *zap.Logger) *MovementAuditHandler {
	return &MovementAuditHandler{
		logger: logger.Named("movement_audit"),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *MovementAuditHandler) EventTypes() []string {
	return []string{
		movement.EventTypeMovementSent,
		movement.EventTypeItemsDecided,
		movement.EventTypeTransferInitiated,
		movement.EventTypeDeliveryConfirmed,
	}
}

// Handle writes an audit log entry for the event
func (h *MovementAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("movement_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *movement.MovementSentEvent:
		fields = append(fields,
			zap.String("movement_number", e.MovementNumber),
			zap.String("requesting_service_id", e.RequestingServiceID.String()),
			zap.String("providing_service_id", e.ProvidingServiceID.String()),
			zap.Int("item_count", e.ItemCount),
		)
		h.logger.Info("movement sent for approval", fields...)

	case *movement.ItemsDecidedEvent:
		itemIDs := make([]string, len(e.ItemIDs))
		for i, id := range e.ItemIDs {
			itemIDs[i] = id.String()
		}
		fields = append(fields,
			zap.String("movement_number", e.MovementNumber),
			zap.Strings("item_ids", itemIDs),
			zap.String("status", e.Status),
		)
		h.logger.Info("movement items decided", fields...)

	case *movement.TransferInitiatedEvent:
		fields = append(fields,
			zap.String("movement_number", e.MovementNumber),
			zap.String("providing_service_id", e.ProvidingServiceID.String()),
		)
		h.logger.Info("transfer initiated", fields...)

	case *movement.DeliveryConfirmedEvent:
		fields = append(fields,
			zap.String("movement_number", e.MovementNumber),
			zap.String("requesting_service_id", e.RequestingServiceID.String()),
			zap.String("status", e.Status),
			zap.String("missing_quantity", e.MissingQuantity),
		)
		h.logger.Info("delivery confirmed", fields...)

	default:
		fields = append(fields, zap.String("event_type", event.EventType()))
		h.logger.Info("movement event", fields...)
	}

	return nil
}

// Ensure MovementAuditHandler implements shared.EventHandler
var _ shared.EventHandler = (*MovementAuditHandler)(nil)
