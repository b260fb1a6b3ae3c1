package movement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gestock/backend/internal/domain/inventory"
	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/domain/shared"
	"github.com/gestock/backend/internal/infrastructure/telemetry"
)

// TransferService executes the physical hand-off of an approved movement:
// it deducts every selected provider lot and moves the request to IN_TRANSFER.
type TransferService struct {
	movementRepo   movement.MovementRequestRepository
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
}

// NewTransferService creates a new TransferService
func NewTransferService(
	movementRepo movement.MovementRequestRepository,
	txScope TransactionScope,
) *TransferService {
	return &TransferService{
		movementRepo: movementRepo,
		txScope:      txScope,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *TransferService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// InitializeTransfer deducts all selected lots and transitions the movement to
// IN_TRANSFER within a single transaction. Lots are loaded with row locks so
// that two concurrent transfers against the same lot serialize instead of
// overselling; any failure rolls back every deduction.
func (s *TransferService) InitializeTransfer(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) (*MovementResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "movement", "initialize_transfer")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrMovementID, movementID.String(),
		telemetry.SpanAttrSourceServiceID, actor.ServiceID.String(),
	)

	var result *movement.MovementRequest
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.MovementOperationLabels(telemetry.OperationInitializeTransfer), func(c context.Context) {
		opErr = s.txScope.Execute(c, func(repos TransactionalRepositories) error {
			m, err := repos.MovementRepo().FindByIDForTenant(c, tenantID, movementID)
			if err != nil {
				return err
			}
			if err := m.AuthorizeProvider(actor); err != nil {
				return err
			}
			if !m.Status.CanInitiateTransfer() {
				return shared.NewDomainError("INVALID_STATE",
					fmt.Sprintf("Cannot initiate transfer from status %s", m.Status))
			}
			telemetry.SetAttribute(span, telemetry.SpanAttrMovementNumber, m.MovementNumber)

			// Collect every selected lot across all approved items
			required := map[uuid.UUID]decimal.Decimal{}
			lotIDs := make([]uuid.UUID, 0)
			for idx := range m.Items {
				item := &m.Items[idx]
				if item.Status != movement.ItemStatusApproved {
					continue
				}
				for _, sel := range item.Selections {
					if _, seen := required[sel.StockLotID]; !seen {
						lotIDs = append(lotIDs, sel.StockLotID)
					}
					required[sel.StockLotID] = required[sel.StockLotID].Add(sel.SelectedQuantity)
				}
			}
			if len(lotIDs) == 0 {
				return shared.NewDomainError("INCOMPLETE_SELECTION", "No inventory selected for this movement")
			}

			lots, err := repos.LotRepo().FindByIDsForUpdate(c, tenantID, lotIDs)
			if err != nil {
				return err
			}
			byID := make(map[uuid.UUID]*inventory.StockLot, len(lots))
			for idx := range lots {
				byID[lots[idx].ID] = &lots[idx]
			}

			// All-or-nothing: every deduction must succeed before anything is saved
			for _, lotID := range lotIDs {
				lot, ok := byID[lotID]
				if !ok {
					return shared.NewDomainError("NOT_FOUND",
						fmt.Sprintf("Selected lot %s no longer exists", lotID))
				}
				if err := lot.Deduct(required[lotID]); err != nil {
					return err
				}
			}
			for _, lotID := range lotIDs {
				if err := repos.LotRepo().SaveWithLock(c, byID[lotID]); err != nil {
					return err
				}
			}

			deductions := make(map[uuid.UUID]decimal.Decimal, len(m.Items))
			for idx := range m.Items {
				item := &m.Items[idx]
				if item.Status == movement.ItemStatusApproved {
					deductions[item.ID] = item.SelectedTotal()
				}
			}
			if err := m.BeginTransfer(actor.UserID, deductions); err != nil {
				return err
			}
			if err := repos.MovementRepo().SaveWithLock(c, m); err != nil {
				return err
			}

			telemetry.AddEvent(span, "stock_deducted",
				"lots_deducted", len(lotIDs),
			)
			result = m
			return nil
		})
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	s.publishDomainEvents(ctx, result)
	response := ToMovementResponse(result)
	return &response, nil
}

// publishDomainEvents publishes all domain events from the movement
func (s *TransferService) publishDomainEvents(ctx context.Context, m *movement.MovementRequest) {
	if s.eventPublisher == nil {
		return
	}
	events := m.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	m.ClearDomainEvents()
}
