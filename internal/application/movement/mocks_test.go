package movement

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/gestock/backend/internal/domain/inventory"
	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/domain/shared"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockMovementRepository is a mock implementation of MovementRequestRepository
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*movement.MovementRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*movement.MovementRequest), args.Error(1)
}

func (m *MockMovementRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*movement.MovementRequest, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*movement.MovementRequest), args.Error(1)
}

func (m *MockMovementRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, movementNumber string) (*movement.MovementRequest, error) {
	args := m.Called(ctx, tenantID, movementNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*movement.MovementRequest), args.Error(1)
}

func (m *MockMovementRepository) FindDraft(ctx context.Context, tenantID, requestingServiceID, providingServiceID, requestingUserID uuid.UUID) (*movement.MovementRequest, error) {
	args := m.Called(ctx, tenantID, requestingServiceID, providingServiceID, requestingUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*movement.MovementRequest), args.Error(1)
}

func (m *MockMovementRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]movement.MovementRequest, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]movement.MovementRequest), args.Error(1)
}

func (m *MockMovementRepository) FindByService(ctx context.Context, tenantID, serviceID uuid.UUID, filter shared.Filter) ([]movement.MovementRequest, error) {
	args := m.Called(ctx, tenantID, serviceID, filter)
	return args.Get(0).([]movement.MovementRequest), args.Error(1)
}

func (m *MockMovementRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMovementRepository) Save(ctx context.Context, mv *movement.MovementRequest) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockMovementRepository) SaveWithLock(ctx context.Context, mv *movement.MovementRequest) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockMovementRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockMovementRepository) GenerateMovementNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

// MockStockLotRepository is a mock implementation of StockLotRepository
type MockStockLotRepository struct {
	mock.Mock
}

func (m *MockStockLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockLot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockLot), args.Error(1)
}

func (m *MockStockLotRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockLot, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.StockLot), args.Error(1)
}

func (m *MockStockLotRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.StockLot, error) {
	args := m.Called(ctx, tenantID, ids)
	return args.Get(0).([]inventory.StockLot), args.Error(1)
}

func (m *MockStockLotRepository) FindByProductAndService(ctx context.Context, tenantID, productID, serviceID uuid.UUID) ([]inventory.StockLot, error) {
	args := m.Called(ctx, tenantID, productID, serviceID)
	return args.Get(0).([]inventory.StockLot), args.Error(1)
}

func (m *MockStockLotRepository) Save(ctx context.Context, lot *inventory.StockLot) error {
	args := m.Called(ctx, lot)
	return args.Error(0)
}

func (m *MockStockLotRepository) SaveWithLock(ctx context.Context, lot *inventory.StockLot) error {
	args := m.Called(ctx, lot)
	return args.Error(0)
}

func (m *MockStockLotRepository) Create(ctx context.Context, lot *inventory.StockLot) error {
	args := m.Called(ctx, lot)
	return args.Error(0)
}
