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

// DeliveryService reconciles what the requesting service actually received
// against what the provider sent, and credits the received goods to the
// requester's own stock lots.
type DeliveryService struct {
	movementRepo   movement.MovementRequestRepository
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(
	movementRepo movement.MovementRequestRepository,
	txScope TransactionScope,
) *DeliveryService {
	return &DeliveryService{
		movementRepo: movementRepo,
		txScope:      txScope,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *DeliveryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishDomainEvents publishes all domain events from the movement
func (s *DeliveryService) publishDomainEvents(ctx context.Context, m *movement.MovementRequest) {
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

// parseOutcome maps the wire-level confirmation status to the domain enum
func parseOutcome(status string) (movement.ConfirmationStatus, error) {
	switch status {
	case "good":
		return movement.ConfirmationStatusGood, nil
	case "damaged":
		return movement.ConfirmationStatusDamaged, nil
	case "manque":
		return movement.ConfirmationStatusManque, nil
	default:
		return movement.ConfirmationStatusNone,
			shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown confirmation status %q", status))
	}
}

// ConfirmDelivery records the receiving side's verdict for the whole delivery
// and, inside the same transaction, creates requester-side lots for everything
// that actually arrived.
func (s *DeliveryService) ConfirmDelivery(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req ConfirmDeliveryRequest) (*MovementResponse, error) {
	outcome, err := parseOutcome(req.Status)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "movement", "confirm_delivery")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrMovementID, movementID.String(),
		telemetry.SpanAttrConfirmationStatus, string(outcome),
		telemetry.SpanAttrDestinationServiceID, actor.ServiceID.String(),
	)

	var result *movement.MovementRequest
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.MovementOperationLabels(telemetry.OperationConfirmDelivery), func(c context.Context) {
		opErr = s.txScope.Execute(c, func(repos TransactionalRepositories) error {
			m, err := s.loadForRequester(c, repos, tenantID, actor, movementID)
			if err != nil {
				return err
			}
			credits, err := m.ConfirmDelivery(actor.UserID, outcome, req.Notes, req.MissingQuantity)
			if err != nil {
				return err
			}
			if err := s.creditRequesterLots(c, repos, m, credits); err != nil {
				return err
			}
			if err := repos.MovementRepo().SaveWithLock(c, m); err != nil {
				return err
			}

			telemetry.AddEvent(span, "requester_lots_credited",
				"credits", len(credits),
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

// ConfirmProduct records the receiving side's verdict for a single item
func (s *DeliveryService) ConfirmProduct(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req ConfirmProductRequest) (*MovementResponse, error) {
	outcome, err := parseOutcome(req.Status)
	if err != nil {
		return nil, err
	}

	var result *movement.MovementRequest
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		m, err := s.loadForRequester(ctx, repos, tenantID, actor, movementID)
		if err != nil {
			return err
		}
		credits, err := m.ConfirmProduct(req.ItemID, outcome, req.ReceivedQuantity)
		if err != nil {
			return err
		}
		if err := s.creditRequesterLots(ctx, repos, m, credits); err != nil {
			return err
		}
		if err := repos.MovementRepo().SaveWithLock(ctx, m); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToMovementResponse(result)
	return &response, nil
}

// ValidateQuantities classifies declared received quantities against sent
// quantities without changing any state.
func (s *DeliveryService) ValidateQuantities(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req ValidateQuantitiesRequest) ([]QuantityCheckResponse, error) {
	m, err := s.movementRepo.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.AuthorizeRequester(actor); err != nil {
		return nil, err
	}

	checks, err := m.ValidateQuantities(toQuantityEntries(req.Items))
	if err != nil {
		return nil, err
	}

	responses := make([]QuantityCheckResponse, 0, len(checks))
	for _, check := range checks {
		responses = append(responses, QuantityCheckResponse{
			ItemID:           check.ItemID,
			ProductID:        check.ProductID,
			SenderQuantity:   check.SenderQuantity,
			ReceivedQuantity: check.Received,
			Classification:   check.Classification,
			Shortfall:        check.Shortfall,
		})
	}
	return responses, nil
}

// ProcessValidation settles declared received quantities: full arrivals are
// confirmed good, short arrivals split a shortage item, and received goods are
// credited to requester lots in the same transaction.
func (s *DeliveryService) ProcessValidation(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req ProcessValidationRequest) (*MovementResponse, error) {
	var result *movement.MovementRequest
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		m, err := s.loadForRequester(ctx, repos, tenantID, actor, movementID)
		if err != nil {
			return err
		}
		credits, err := m.ProcessValidation(toQuantityEntries(req.Validations))
		if err != nil {
			return err
		}
		if err := s.creditRequesterLots(ctx, repos, m, credits); err != nil {
			return err
		}
		if err := repos.MovementRepo().SaveWithLock(ctx, m); err != nil {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToMovementResponse(result)
	return &response, nil
}

// FinalizeConfirmation closes a movement once every approved item has a verdict
func (s *DeliveryService) FinalizeConfirmation(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req FinalizeConfirmationRequest) (*MovementResponse, error) {
	m, err := s.movementRepo.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.AuthorizeRequester(actor); err != nil {
		return nil, err
	}
	if err := m.FinalizeConfirmation(actor.UserID, req.Notes); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, m)
	response := ToMovementResponse(m)
	return &response, nil
}

// loadForRequester loads a movement within the transaction and verifies the
// actor belongs to the requesting service.
func (s *DeliveryService) loadForRequester(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) (*movement.MovementRequest, error) {
	m, err := repos.MovementRepo().FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.AuthorizeRequester(actor); err != nil {
		return nil, err
	}
	return m, nil
}

// creditRequesterLots creates one requester-side lot per credit, preserving the
// batch, serial and expiry attributes captured at selection time.
func (s *DeliveryService) creditRequesterLots(ctx context.Context, repos TransactionalRepositories, m *movement.MovementRequest, credits []movement.LotCredit) error {
	for _, credit := range credits {
		if credit.Quantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		lot, err := inventory.NewStockLot(m.TenantID, credit.ProductID, m.RequestingServiceID, credit.Quantity, credit.BatchNumber, credit.SerialNumber, credit.ExpiryDate)
		if err != nil {
			return err
		}
		if err := repos.LotRepo().Create(ctx, lot); err != nil {
			return err
		}
	}
	return nil
}

func toQuantityEntries(items []QuantityEntryRequest) []movement.QuantityEntry {
	entries := make([]movement.QuantityEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, movement.QuantityEntry{
			ItemID:   item.ItemID,
			Received: item.ReceivedQuantity,
		})
	}
	return entries
}
