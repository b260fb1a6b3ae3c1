package movement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gestock/backend/internal/domain/inventory"
	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/domain/shared"
)

// MovementService handles the request-side lifecycle of stock movements:
// drafting, sending, item decisions and inventory selection.
type MovementService struct {
	movementRepo   movement.MovementRequestRepository
	lotRepo        inventory.StockLotRepository
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
}

// NewMovementService creates a new MovementService
func NewMovementService(
	movementRepo movement.MovementRequestRepository,
	lotRepo inventory.StockLotRepository,
	txScope TransactionScope,
) *MovementService {
	return &MovementService{
		movementRepo: movementRepo,
		lotRepo:      lotRepo,
		txScope:      txScope,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *MovementService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishDomainEvents publishes all domain events from the movement
func (s *MovementService) publishDomainEvents(ctx context.Context, m *movement.MovementRequest) {
	if s.eventPublisher == nil {
		return
	}
	events := m.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish events (errors are logged by the event bus, not propagated)
	_ = s.eventPublisher.Publish(ctx, events...)
	m.ClearDomainEvents()
}

// CreateDraft opens a movement draft towards the providing service. If the
// actor already has an open draft for the same provider, that draft is
// returned instead of creating a second one. The movement number is allocated
// inside the same transaction that inserts the draft, so concurrent creates
// cannot observe the same sequence value.
func (s *MovementService) CreateDraft(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, req CreateMovementRequest) (*MovementResponse, error) {
	existing, err := s.movementRepo.FindDraft(ctx, tenantID, actor.ServiceID, req.ProvidingServiceID, actor.UserID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up existing draft: %w", err)
	}
	if existing != nil {
		response := ToMovementResponse(existing)
		return &response, nil
	}

	var created *movement.MovementRequest
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		number, genErr := repos.MovementRepo().GenerateMovementNumber(ctx, tenantID)
		if genErr != nil {
			return fmt.Errorf("failed to generate movement number: %w", genErr)
		}
		m, newErr := movement.NewMovementRequest(tenantID, number, actor.ServiceID, req.ProvidingServiceID, actor.UserID, req.Reason, req.ExpectedDelivery)
		if newErr != nil {
			return newErr
		}
		if saveErr := repos.MovementRepo().Save(ctx, m); saveErr != nil {
			return fmt.Errorf("failed to save movement: %w", saveErr)
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToMovementResponse(created)
	return &response, nil
}

// loadOwned loads a movement and verifies the actor created it
func (s *MovementService) loadOwned(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) (*movement.MovementRequest, error) {
	m, err := s.movementRepo.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.AuthorizeOwner(actor); err != nil {
		return nil, err
	}
	return m, nil
}

// AddItem adds a product line to a draft movement
func (s *MovementService) AddItem(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req AddItemRequest) (*MovementResponse, error) {
	m, err := s.loadOwned(ctx, tenantID, actor, movementID)
	if err != nil {
		return nil, err
	}
	if _, err := m.AddItem(req.ProductID, req.Quantity, req.Notes); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	response := ToMovementResponse(m)
	return &response, nil
}

// UpdateItem changes the requested quantity or notes of a draft line
func (s *MovementService) UpdateItem(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID, itemID uuid.UUID, req UpdateItemRequest) (*MovementResponse, error) {
	m, err := s.loadOwned(ctx, tenantID, actor, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.UpdateItem(itemID, req.Quantity, req.Notes); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	response := ToMovementResponse(m)
	return &response, nil
}

// RemoveItem deletes a line from a draft movement
func (s *MovementService) RemoveItem(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID, itemID uuid.UUID) (*MovementResponse, error) {
	m, err := s.loadOwned(ctx, tenantID, actor, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.RemoveItem(itemID); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	response := ToMovementResponse(m)
	return &response, nil
}

// DeleteDraft removes an unsent draft entirely
func (s *MovementService) DeleteDraft(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) error {
	m, err := s.loadOwned(ctx, tenantID, actor, movementID)
	if err != nil {
		return err
	}
	if !m.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Only draft movements can be deleted")
	}
	return s.movementRepo.DeleteForTenant(ctx, tenantID, movementID)
}

// Send submits a draft to the providing service for approval
func (s *MovementService) Send(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) (*MovementResponse, error) {
	m, err := s.loadOwned(ctx, tenantID, actor, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.Send(); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, m)
	response := ToMovementResponse(m)
	return &response, nil
}

// loadForProvider loads a movement and verifies the actor belongs to the providing service
func (s *MovementService) loadForProvider(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) (*movement.MovementRequest, error) {
	m, err := s.movementRepo.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.AuthorizeProvider(actor); err != nil {
		return nil, err
	}
	return m, nil
}

// ApproveItems grants the requested quantity of the given items
func (s *MovementService) ApproveItems(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req DecideItemsRequest) (*MovementResponse, error) {
	m, err := s.loadForProvider(ctx, tenantID, actor, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.ApproveItems(req.ItemIDs, actor.UserID, req.Notes); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, m)
	response := ToMovementResponse(m)
	return &response, nil
}

// RejectItems refuses the given items with a reason
func (s *MovementService) RejectItems(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req DecideItemsRequest) (*MovementResponse, error) {
	m, err := s.loadForProvider(ctx, tenantID, actor, movementID)
	if err != nil {
		return nil, err
	}
	if err := m.RejectItems(req.ItemIDs, actor.UserID, req.RejectionReason); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, m)
	response := ToMovementResponse(m)
	return &response, nil
}

// SelectInventory binds an approved item to concrete provider lots. Each lot
// must belong to the providing service and carry the item's product; batch,
// serial and expiry attributes are copied onto the selection so the receiving
// side can recreate them on its own lots.
func (s *MovementService) SelectInventory(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID, req SelectInventoryRequest) (*MovementResponse, error) {
	m, err := s.loadForProvider(ctx, tenantID, actor, movementID)
	if err != nil {
		return nil, err
	}
	item := m.FindItem(req.ItemID)
	if item == nil {
		return nil, shared.NewDomainError("ITEM_NOT_FOUND", "Movement item not found")
	}

	selections := make([]movement.InventorySelection, 0, len(req.SelectedInventory))
	for _, chosen := range req.SelectedInventory {
		lot, lotErr := s.lotRepo.FindByIDForTenant(ctx, tenantID, chosen.StockLotID)
		if lotErr != nil {
			return nil, lotErr
		}
		if lot.ServiceID != m.ProvidingServiceID {
			return nil, shared.NewDomainError("FORBIDDEN",
				fmt.Sprintf("Lot %s does not belong to the providing service", lot.ID))
		}
		if lot.ProductID != item.ProductID {
			return nil, shared.NewDomainError("PRODUCT_MISMATCH",
				fmt.Sprintf("Lot %s holds a different product than the requested item", lot.ID))
		}
		if !lot.HasStock(chosen.Quantity) {
			return nil, shared.NewDomainError("INSUFFICIENT_STOCK",
				fmt.Sprintf("Lot %s has %s available, %s requested", lot.ID, lot.Quantity.String(), chosen.Quantity.String()))
		}
		sel, selErr := movement.NewInventorySelection(item.ID, lot.ID, chosen.Quantity, lot.BatchNumber, lot.SerialNumber, lot.ExpiryDate)
		if selErr != nil {
			return nil, selErr
		}
		selections = append(selections, *sel)
	}

	if err := m.SelectInventory(item.ID, selections); err != nil {
		return nil, err
	}
	if err := s.movementRepo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	response := ToMovementResponse(m)
	return &response, nil
}

// Get retrieves a movement visible to the actor's service
func (s *MovementService) Get(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) (*MovementResponse, error) {
	m, err := s.movementRepo.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(m, actor); err != nil {
		return nil, err
	}
	response := ToMovementResponse(m)
	return &response, nil
}

// Stats summarizes the quantity lifecycle of one movement
func (s *MovementService) Stats(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, movementID uuid.UUID) (*MovementStatsResponse, error) {
	m, err := s.movementRepo.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(m, actor); err != nil {
		return nil, err
	}
	stats := ToStatsResponse(m)
	return &stats, nil
}

// authorizeView allows either side of a movement to read it
func (s *MovementService) authorizeView(m *movement.MovementRequest, actor movement.Actor) error {
	if m.AuthorizeRequester(actor) == nil || m.AuthorizeProvider(actor) == nil {
		return nil
	}
	return shared.NewDomainError("FORBIDDEN", "Movement is not visible to this service")
}

// List returns movements involving the actor's service, newest first
func (s *MovementService) List(ctx context.Context, tenantID uuid.UUID, actor movement.Actor, filter MovementListFilter) ([]MovementListItemResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "updated_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	repoFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  map[string]interface{}{},
	}
	if filter.Status != "" {
		repoFilter.Filters["status"] = filter.Status
	}
	// service_id scopes the count to either side of the movement
	repoFilter.Filters["service_id"] = actor.ServiceID
	switch filter.Direction {
	case "incoming":
		repoFilter.Filters["providing_service_id"] = actor.ServiceID
	case "outgoing":
		repoFilter.Filters["requesting_service_id"] = actor.ServiceID
	}

	movements, err := s.movementRepo.FindByService(ctx, tenantID, actor.ServiceID, repoFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.movementRepo.CountForTenant(ctx, tenantID, repoFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]MovementListItemResponse, 0, len(movements))
	for idx := range movements {
		responses = append(responses, ToMovementListItemResponse(&movements[idx]))
	}
	return responses, total, nil
}
