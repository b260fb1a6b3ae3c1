// End-to-end tests for the inter-service stock movement workflow, from
// draft through approval, inventory selection, transfer and delivery
// confirmation, against a real PostgreSQL database.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appmovement "github.com/gestock/backend/internal/application/movement"
	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/infrastructure/event"
	"github.com/gestock/backend/internal/infrastructure/persistence"
	"github.com/gestock/backend/tests/testutil"
)

// workflowSetup wires the application services against a dedicated test
// database, with the in-memory event bus and an event recorder attached.
type workflowSetup struct {
	db *TestDB

	movements  *appmovement.MovementService
	transfers  *appmovement.TransferService
	deliveries *appmovement.DeliveryService
	recorder   *testutil.EventRecorder

	tenantID  uuid.UUID
	requester movement.Actor
	provider  movement.Actor
}

func newWorkflowSetup(t *testing.T) *workflowSetup {
	t.Helper()

	db := NewTestDB(t)

	movementRepo := persistence.NewGormMovementRepository(db.DB)
	lotRepo := persistence.NewGormStockLotRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	logger := zap.NewNop()
	bus := event.NewInMemoryEventBus(logger)
	bus.Subscribe(appmovement.NewMovementAuditHandler(logger))

	recorder := testutil.NewEventRecorder()
	bus.Subscribe(recorder)

	movements := appmovement.NewMovementService(movementRepo, lotRepo, txScope)
	movements.SetEventPublisher(bus)
	transfers := appmovement.NewTransferService(movementRepo, txScope)
	transfers.SetEventPublisher(bus)
	deliveries := appmovement.NewDeliveryService(movementRepo, txScope)
	deliveries.SetEventPublisher(bus)

	return &workflowSetup{
		db:         db,
		movements:  movements,
		transfers:  transfers,
		deliveries: deliveries,
		recorder:   recorder,
		tenantID:   testutil.TenantID(),
		requester:  movement.Actor{UserID: testutil.RequestingUserID(), ServiceID: testutil.RequestingServiceID()},
		provider:   movement.Actor{UserID: testutil.ProvidingUserID(), ServiceID: testutil.ProvidingServiceID()},
	}
}

// seedLot creates a provider-side lot and returns its ID.
func (s *workflowSetup) seedLot(t *testing.T, productID uuid.UUID, quantity int64) uuid.UUID {
	t.Helper()
	lotID := uuid.New()
	s.db.CreateTestStockLot(lotID, s.tenantID, productID, s.provider.ServiceID, quantity)
	return lotID
}

// draftWithItems opens a draft and adds one line per product.
func (s *workflowSetup) draftWithItems(t *testing.T, ctx context.Context, lines map[uuid.UUID]int64) *appmovement.MovementResponse {
	t.Helper()

	resp, err := s.movements.CreateDraft(ctx, s.tenantID, s.requester, appmovement.CreateMovementRequest{
		ProvidingServiceID: s.provider.ServiceID,
		Reason:             "restock",
	})
	require.NoError(t, err)

	for productID, qty := range lines {
		resp, err = s.movements.AddItem(ctx, s.tenantID, s.requester, resp.ID, appmovement.AddItemRequest{
			ProductID: productID,
			Quantity:  decimal.NewFromInt(qty),
		})
		require.NoError(t, err)
	}
	return resp
}

// itemIDs returns the IDs of all items in the response.
func itemIDs(resp *appmovement.MovementResponse) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(resp.Items))
	for _, item := range resp.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// itemForProduct finds the response item carrying the given product.
func itemForProduct(t *testing.T, resp *appmovement.MovementResponse, productID uuid.UUID) appmovement.ItemResponse {
	t.Helper()
	for _, item := range resp.Items {
		if item.ProductID == productID && item.Status != movement.ItemStatusRejected.String() {
			return item
		}
	}
	t.Fatalf("no item for product %s", productID)
	return appmovement.ItemResponse{}
}

// approveAndSelect sends the draft, approves every item and binds each one
// to its lot for the full requested quantity.
func (s *workflowSetup) approveAndSelect(t *testing.T, ctx context.Context, resp *appmovement.MovementResponse, lots map[uuid.UUID]uuid.UUID) *appmovement.MovementResponse {
	t.Helper()

	resp, err := s.movements.Send(ctx, s.tenantID, s.requester, resp.ID)
	require.NoError(t, err)

	resp, err = s.movements.ApproveItems(ctx, s.tenantID, s.provider, resp.ID, appmovement.DecideItemsRequest{
		ItemIDs: itemIDs(resp),
	})
	require.NoError(t, err)

	for productID, lotID := range lots {
		item := itemForProduct(t, resp, productID)
		resp, err = s.movements.SelectInventory(ctx, s.tenantID, s.provider, resp.ID, appmovement.SelectInventoryRequest{
			ItemID: item.ID,
			SelectedInventory: []appmovement.SelectedLot{
				{StockLotID: lotID, Quantity: item.RequestedQuantity},
			},
		})
		require.NoError(t, err)
	}
	return resp
}

func TestMovementWorkflowFullDelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newWorkflowSetup(t)
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	lotA := s.seedLot(t, productA, 100)
	lotB := s.seedLot(t, productB, 50)

	resp := s.draftWithItems(t, ctx, map[uuid.UUID]int64{productA: 30, productB: 20})
	require.Len(t, resp.Items, 2)
	assert.Equal(t, movement.MovementStatusDraft.String(), resp.Status)
	assert.Regexp(t, `^SM-\d{4}-\d{6}$`, resp.MovementNumber)

	resp = s.approveAndSelect(t, ctx, resp, map[uuid.UUID]uuid.UUID{productA: lotA, productB: lotB})
	assert.Equal(t, movement.MovementStatusApproved.String(), resp.Status)

	resp, err := s.transfers.InitializeTransfer(ctx, s.tenantID, s.provider, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusInTransfer.String(), resp.Status)
	require.NotNil(t, resp.TransferInitiatedAt)

	// Provider lots were deducted atomically with the transition.
	assert.True(t, s.db.LotQuantity(lotA).Equal(decimal.NewFromInt(70)),
		"lot A should drop from 100 to 70, got %s", s.db.LotQuantity(lotA))
	assert.True(t, s.db.LotQuantity(lotB).Equal(decimal.NewFromInt(30)),
		"lot B should drop from 50 to 30, got %s", s.db.LotQuantity(lotB))
	for _, item := range resp.Items {
		assert.True(t, item.SenderQuantity.Equal(item.RequestedQuantity))
	}

	resp, err = s.deliveries.ConfirmDelivery(ctx, s.tenantID, s.requester, resp.ID, appmovement.ConfirmDeliveryRequest{
		Status: "good",
		Notes:  "all received",
	})
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusFulfilled.String(), resp.Status)
	require.NotNil(t, resp.DeliveryConfirmedAt)

	// Received goods were credited to the requester as new lots.
	assert.True(t, s.db.ServiceProductQuantity(s.tenantID, s.requester.ServiceID, productA).Equal(decimal.NewFromInt(30)))
	assert.True(t, s.db.ServiceProductQuantity(s.tenantID, s.requester.ServiceID, productB).Equal(decimal.NewFromInt(20)))

	// The full lifecycle was published on the event bus.
	testutil.WaitForEvents(t, s.recorder, 4, time.Second)
	types := make([]string, 0)
	for _, evt := range s.recorder.Captured() {
		types = append(types, evt.EventType())
	}
	assert.Contains(t, types, movement.EventTypeMovementSent)
	assert.Contains(t, types, movement.EventTypeItemsDecided)
	assert.Contains(t, types, movement.EventTypeTransferInitiated)
	assert.Contains(t, types, movement.EventTypeDeliveryConfirmed)
}

func TestMovementWorkflowShortageSplitsItem(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newWorkflowSetup(t)
	ctx := context.Background()

	productID := uuid.New()
	lotID := s.seedLot(t, productID, 100)

	resp := s.draftWithItems(t, ctx, map[uuid.UUID]int64{productID: 40})
	resp = s.approveAndSelect(t, ctx, resp, map[uuid.UUID]uuid.UUID{productID: lotID})

	resp, err := s.transfers.InitializeTransfer(ctx, s.tenantID, s.provider, resp.ID)
	require.NoError(t, err)

	// 10 units never arrive.
	missing := decimal.NewFromInt(10)
	resp, err = s.deliveries.ConfirmDelivery(ctx, s.tenantID, s.requester, resp.ID, appmovement.ConfirmDeliveryRequest{
		Status:          "manque",
		MissingQuantity: &missing,
	})
	require.NoError(t, err)

	// With no line confirmed good the movement settles as unfulfilled.
	assert.Equal(t, movement.MovementStatusUnfulfilled.String(), resp.Status)
	assert.True(t, resp.MissingQuantity.Equal(missing))

	// The shortfall splits a bookkeeping item for the undelivered portion.
	require.Len(t, resp.Items, 2)
	var shortage *appmovement.ItemResponse
	for idx := range resp.Items {
		if resp.Items[idx].SenderQuantity.IsZero() {
			shortage = &resp.Items[idx]
		}
	}
	require.NotNil(t, shortage, "expected a split shortage item")
	assert.True(t, shortage.RequestedQuantity.Equal(missing))
	assert.Equal(t, movement.ConfirmationStatusManque.String(), shortage.ConfirmationStatus)

	// Only what arrived is credited; the provider deduction is not revised.
	assert.True(t, s.db.ServiceProductQuantity(s.tenantID, s.requester.ServiceID, productID).Equal(decimal.NewFromInt(30)))
	assert.True(t, s.db.LotQuantity(lotID).Equal(decimal.NewFromInt(60)))
}

func TestMovementWorkflowInsufficientStockRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newWorkflowSetup(t)
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	lotA := s.seedLot(t, productA, 50)
	lotB := s.seedLot(t, productB, 50)

	resp := s.draftWithItems(t, ctx, map[uuid.UUID]int64{productA: 20, productB: 30})
	resp = s.approveAndSelect(t, ctx, resp, map[uuid.UUID]uuid.UUID{productA: lotA, productB: lotB})

	// Lot B shrinks underneath the workflow between selection and transfer.
	s.db.SetLotQuantity(lotB, 5)

	_, err := s.transfers.InitializeTransfer(ctx, s.tenantID, s.provider, resp.ID)
	require.Error(t, err)

	// The failed deduction rolled back everything: lot A untouched, the
	// movement still ready for another attempt.
	assert.True(t, s.db.LotQuantity(lotA).Equal(decimal.NewFromInt(50)))
	assert.True(t, s.db.LotQuantity(lotB).Equal(decimal.NewFromInt(5)))

	current, err := s.movements.Get(ctx, s.tenantID, s.provider, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusApproved.String(), current.Status)
	assert.Nil(t, current.TransferInitiatedAt)
}

func TestMovementWorkflowPartialApproval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newWorkflowSetup(t)
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	lotA := s.seedLot(t, productA, 100)
	s.seedLot(t, productB, 100)

	resp := s.draftWithItems(t, ctx, map[uuid.UUID]int64{productA: 10, productB: 15})

	resp, err := s.movements.Send(ctx, s.tenantID, s.requester, resp.ID)
	require.NoError(t, err)

	approveItem := itemForProduct(t, resp, productA)
	rejectItem := itemForProduct(t, resp, productB)

	resp, err = s.movements.ApproveItems(ctx, s.tenantID, s.provider, resp.ID, appmovement.DecideItemsRequest{
		ItemIDs: []uuid.UUID{approveItem.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusPartiallyApproved.String(), resp.Status)

	resp, err = s.movements.RejectItems(ctx, s.tenantID, s.provider, resp.ID, appmovement.DecideItemsRequest{
		ItemIDs:         []uuid.UUID{rejectItem.ID},
		RejectionReason: "not stocked here",
	})
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusPartiallyApproved.String(), resp.Status)

	resp, err = s.movements.SelectInventory(ctx, s.tenantID, s.provider, resp.ID, appmovement.SelectInventoryRequest{
		ItemID: approveItem.ID,
		SelectedInventory: []appmovement.SelectedLot{
			{StockLotID: lotA, Quantity: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)

	resp, err = s.transfers.InitializeTransfer(ctx, s.tenantID, s.provider, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusInTransfer.String(), resp.Status)

	// Only the approved line ships.
	assert.True(t, s.db.LotQuantity(lotA).Equal(decimal.NewFromInt(90)))
	shipped := itemForProduct(t, resp, productA)
	assert.True(t, shipped.SenderQuantity.Equal(decimal.NewFromInt(10)))

	resp, err = s.deliveries.ConfirmDelivery(ctx, s.tenantID, s.requester, resp.ID, appmovement.ConfirmDeliveryRequest{
		Status: "good",
	})
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusFulfilled.String(), resp.Status)
	assert.True(t, s.db.ServiceProductQuantity(s.tenantID, s.requester.ServiceID, productB).IsZero(),
		"rejected product must not be credited")
}

func TestMovementWorkflowProcessValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newWorkflowSetup(t)
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	lotA := s.seedLot(t, productA, 100)
	lotB := s.seedLot(t, productB, 100)

	resp := s.draftWithItems(t, ctx, map[uuid.UUID]int64{productA: 25, productB: 10})
	resp = s.approveAndSelect(t, ctx, resp, map[uuid.UUID]uuid.UUID{productA: lotA, productB: lotB})

	resp, err := s.transfers.InitializeTransfer(ctx, s.tenantID, s.provider, resp.ID)
	require.NoError(t, err)

	itemA := itemForProduct(t, resp, productA)
	itemB := itemForProduct(t, resp, productB)

	// Dry run: 20 of 25 arrived for product A, product B in full.
	checks, err := s.deliveries.ValidateQuantities(ctx, s.tenantID, s.requester, resp.ID, appmovement.ValidateQuantitiesRequest{
		Items: []appmovement.QuantityEntryRequest{
			{ItemID: itemA.ID, ReceivedQuantity: decimal.NewFromInt(20)},
			{ItemID: itemB.ID, ReceivedQuantity: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, "insufficient", checks[0].Classification)
	assert.True(t, checks[0].Shortfall.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "good", checks[1].Classification)

	// The dry run changed nothing.
	current, err := s.movements.Get(ctx, s.tenantID, s.requester, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusInTransfer.String(), current.Status)

	// Settle the same declarations.
	resp, err = s.deliveries.ProcessValidation(ctx, s.tenantID, s.requester, resp.ID, appmovement.ProcessValidationRequest{
		Validations: []appmovement.QuantityEntryRequest{
			{ItemID: itemA.ID, ReceivedQuantity: decimal.NewFromInt(20)},
			{ItemID: itemB.ID, ReceivedQuantity: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3, "shortfall splits a shortage item")
	assert.True(t, resp.MissingQuantity.Equal(decimal.NewFromInt(5)))

	// Every item has a verdict, so the movement can be finalized.
	resp, err = s.deliveries.FinalizeConfirmation(ctx, s.tenantID, s.requester, resp.ID, appmovement.FinalizeConfirmationRequest{
		Notes: "settled after recount",
	})
	require.NoError(t, err)
	assert.Equal(t, movement.MovementStatusPartiallyFulfilled.String(), resp.Status)

	assert.True(t, s.db.ServiceProductQuantity(s.tenantID, s.requester.ServiceID, productA).Equal(decimal.NewFromInt(20)))
	assert.True(t, s.db.ServiceProductQuantity(s.tenantID, s.requester.ServiceID, productB).Equal(decimal.NewFromInt(10)))
}

func TestMovementWorkflowDraftDeduplication(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newWorkflowSetup(t)
	ctx := context.Background()

	first, err := s.movements.CreateDraft(ctx, s.tenantID, s.requester, appmovement.CreateMovementRequest{
		ProvidingServiceID: s.provider.ServiceID,
	})
	require.NoError(t, err)

	second, err := s.movements.CreateDraft(ctx, s.tenantID, s.requester, appmovement.CreateMovementRequest{
		ProvidingServiceID: s.provider.ServiceID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "open draft is reused instead of duplicated")
	assert.Equal(t, first.MovementNumber, second.MovementNumber)
}
