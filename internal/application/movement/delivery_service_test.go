package movement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gestock/backend/internal/domain/inventory"
	"github.com/gestock/backend/internal/domain/movement"
)

type deliveryFixture struct {
	service      *DeliveryService
	movementRepo *MockMovementRepository
	lotRepo      *MockStockLotRepository
	publisher    *MockEventPublisher
	tenantID     uuid.UUID
	requester    movement.Actor
	provider     movement.Actor
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	movementRepo := new(MockMovementRepository)
	lotRepo := new(MockStockLotRepository)
	publisher := NewMockEventPublisher()

	service := NewDeliveryService(movementRepo, NewNoOpTransactionScope(movementRepo, lotRepo))
	service.SetEventPublisher(publisher)

	return &deliveryFixture{
		service:      service,
		movementRepo: movementRepo,
		lotRepo:      lotRepo,
		publisher:    publisher,
		tenantID:     uuid.New(),
		requester:    movement.Actor{UserID: uuid.New(), ServiceID: uuid.New()},
		provider:     movement.Actor{UserID: uuid.New(), ServiceID: uuid.New()},
	}
}

// inTransfer builds a movement with one item of the given quantity already on its way
func (f *deliveryFixture) inTransfer(t *testing.T, quantity int64) (*movement.MovementRequest, *movement.MovementItem) {
	t.Helper()
	m, err := movement.NewMovementRequest(f.tenantID, "SM-2026-000021", f.requester.ServiceID, f.provider.ServiceID, f.requester.UserID, "", nil)
	require.NoError(t, err)
	item, err := m.AddItem(uuid.New(), decimal.NewFromInt(quantity), "")
	require.NoError(t, err)
	require.NoError(t, m.Send())
	require.NoError(t, m.ApproveItems([]uuid.UUID{item.ID}, f.provider.UserID, ""))
	sel, err := movement.NewInventorySelection(item.ID, uuid.New(), decimal.NewFromInt(quantity), "B-42", "", nil)
	require.NoError(t, err)
	require.NoError(t, m.SelectInventory(item.ID, []movement.InventorySelection{*sel}))
	require.NoError(t, m.BeginTransfer(f.provider.UserID, map[uuid.UUID]decimal.Decimal{
		item.ID: decimal.NewFromInt(quantity),
	}))
	m.ClearDomainEvents()
	return m, m.FindItem(item.ID)
}

func TestDeliveryService_ConfirmDelivery(t *testing.T) {
	t.Run("good delivery credits a requester lot", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, _ := f.inTransfer(t, 10)

		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)
		f.movementRepo.On("SaveWithLock", mock.Anything, m).Return(nil)
		f.lotRepo.On("Create", mock.Anything, mock.MatchedBy(func(lot *inventory.StockLot) bool {
			return lot.ServiceID == f.requester.ServiceID &&
				lot.Quantity.Equal(decimal.NewFromInt(10)) &&
				lot.BatchNumber == "B-42"
		})).Return(nil)

		resp, err := f.service.ConfirmDelivery(context.Background(), f.tenantID, f.requester, m.ID, ConfirmDeliveryRequest{
			Status: "good",
			Notes:  "all there",
		})

		require.NoError(t, err)
		assert.Equal(t, movement.MovementStatusFulfilled.String(), resp.Status)
		assert.Len(t, f.publisher.GetEventsByType(movement.EventTypeDeliveryConfirmed), 1)
		f.lotRepo.AssertExpectations(t)
	})

	t.Run("damaged delivery credits nothing", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, _ := f.inTransfer(t, 10)

		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)
		f.movementRepo.On("SaveWithLock", mock.Anything, m).Return(nil)

		resp, err := f.service.ConfirmDelivery(context.Background(), f.tenantID, f.requester, m.ID, ConfirmDeliveryRequest{
			Status: "damaged",
			Notes:  "crate crushed",
		})

		require.NoError(t, err)
		assert.Equal(t, movement.MovementStatusDamaged.String(), resp.Status)
		f.lotRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("shortfall splits a shortage item and credits the rest", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, item := f.inTransfer(t, 10)
		missing := decimal.NewFromInt(4)

		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)
		f.movementRepo.On("SaveWithLock", mock.Anything, m).Return(nil)
		f.lotRepo.On("Create", mock.Anything, mock.MatchedBy(func(lot *inventory.StockLot) bool {
			return lot.Quantity.Equal(decimal.NewFromInt(6))
		})).Return(nil)

		resp, err := f.service.ConfirmDelivery(context.Background(), f.tenantID, f.requester, m.ID, ConfirmDeliveryRequest{
			Status:          "manque",
			MissingQuantity: &missing,
		})

		require.NoError(t, err)
		require.Len(t, resp.Items, 2)
		got := m.FindItem(item.ID)
		assert.True(t, got.ExecutedQuantity.Equal(decimal.NewFromInt(6)))
		assert.True(t, got.ApprovedQuantity.Equal(decimal.NewFromInt(10)), "approval preserved")
		assert.True(t, resp.Items[1].RequestedQuantity.Equal(decimal.NewFromInt(4)))
		f.lotRepo.AssertExpectations(t)
	})

	t.Run("provider cannot confirm", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, _ := f.inTransfer(t, 10)
		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)

		_, err := f.service.ConfirmDelivery(context.Background(), f.tenantID, f.provider, m.ID, ConfirmDeliveryRequest{Status: "good"})
		assertServiceDomainError(t, err, "FORBIDDEN")
	})

	t.Run("unknown status fails before loading", func(t *testing.T) {
		f := newDeliveryFixture(t)
		_, err := f.service.ConfirmDelivery(context.Background(), f.tenantID, f.requester, uuid.New(), ConfirmDeliveryRequest{Status: "lost"})
		assertServiceDomainError(t, err, "INVALID_INPUT")
		f.movementRepo.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeliveryService_ConfirmProduct(t *testing.T) {
	t.Run("confirms one item good", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, item := f.inTransfer(t, 10)

		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)
		f.movementRepo.On("SaveWithLock", mock.Anything, m).Return(nil)
		f.lotRepo.On("Create", mock.Anything, mock.AnythingOfType("*inventory.StockLot")).Return(nil)

		resp, err := f.service.ConfirmProduct(context.Background(), f.tenantID, f.requester, m.ID, ConfirmProductRequest{
			ItemID: item.ID,
			Status: "good",
		})

		require.NoError(t, err)
		assert.Equal(t, "GOOD", resp.Items[0].ConfirmationStatus)
		// Still in transfer until finalize
		assert.Equal(t, movement.MovementStatusInTransfer.String(), resp.Status)
	})

	t.Run("manque requires a received quantity", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, item := f.inTransfer(t, 10)
		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)

		_, err := f.service.ConfirmProduct(context.Background(), f.tenantID, f.requester, m.ID, ConfirmProductRequest{
			ItemID: item.ID,
			Status: "manque",
		})
		assertServiceDomainError(t, err, "INVALID_INPUT")
	})
}

func TestDeliveryService_ValidateAndProcess(t *testing.T) {
	t.Run("validate is a pure dry run", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, item := f.inTransfer(t, 10)
		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)

		checks, err := f.service.ValidateQuantities(context.Background(), f.tenantID, f.requester, m.ID, ValidateQuantitiesRequest{
			Items: []QuantityEntryRequest{{ItemID: item.ID, ReceivedQuantity: decimal.NewFromInt(7)}},
		})

		require.NoError(t, err)
		require.Len(t, checks, 1)
		assert.Equal(t, "insufficient", checks[0].Classification)
		assert.True(t, checks[0].Shortfall.Equal(decimal.NewFromInt(3)))
		assert.Equal(t, movement.ConfirmationStatusNone, m.FindItem(item.ID).ConfirmationStatus)
		f.movementRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("process settles and credits received goods", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, item := f.inTransfer(t, 10)

		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)
		f.movementRepo.On("SaveWithLock", mock.Anything, m).Return(nil)
		f.lotRepo.On("Create", mock.Anything, mock.MatchedBy(func(lot *inventory.StockLot) bool {
			return lot.Quantity.Equal(decimal.NewFromInt(7))
		})).Return(nil)

		resp, err := f.service.ProcessValidation(context.Background(), f.tenantID, f.requester, m.ID, ProcessValidationRequest{
			Validations: []QuantityEntryRequest{{ItemID: item.ID, ReceivedQuantity: decimal.NewFromInt(7)}},
		})

		require.NoError(t, err)
		require.Len(t, resp.Items, 2, "shortage item split off")
		assert.Equal(t, "MANQUE", resp.Items[0].ConfirmationStatus)
		f.lotRepo.AssertExpectations(t)
	})
}

func TestDeliveryService_FinalizeConfirmation(t *testing.T) {
	t.Run("finalizes once every item is confirmed", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, item := f.inTransfer(t, 10)
		_, err := m.ConfirmProduct(item.ID, movement.ConfirmationStatusGood, nil)
		require.NoError(t, err)

		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)
		f.movementRepo.On("SaveWithLock", mock.Anything, m).Return(nil)

		resp, err := f.service.FinalizeConfirmation(context.Background(), f.tenantID, f.requester, m.ID, FinalizeConfirmationRequest{Notes: "done"})

		require.NoError(t, err)
		assert.Equal(t, movement.MovementStatusFulfilled.String(), resp.Status)
		assert.Len(t, f.publisher.GetEventsByType(movement.EventTypeDeliveryConfirmed), 1)
	})

	t.Run("fails with unconfirmed items", func(t *testing.T) {
		f := newDeliveryFixture(t)
		m, _ := f.inTransfer(t, 10)
		f.movementRepo.On("FindByIDForTenant", mock.Anything, f.tenantID, m.ID).Return(m, nil)

		_, err := f.service.FinalizeConfirmation(context.Background(), f.tenantID, f.requester, m.ID, FinalizeConfirmationRequest{})
		assertServiceDomainError(t, err, "UNCONFIRMED_ITEMS")
	})
}
