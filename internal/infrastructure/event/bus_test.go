package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/domain/shared"
)

type recordingHandler struct {
	eventTypes []string
	err        error
	panicWith  any

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, evt)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) seen() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func sentEvent() shared.DomainEvent {
	return &movement.MovementSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			movement.EventTypeMovementSent, uuid.New(), "MovementRequest", uuid.New()),
		MovementNumber: "MOV-2026-000042",
		ItemCount:      2,
	}
}

func TestPublishDeliversToSubscribedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler(movement.EventTypeMovementSent)
	bus.Subscribe(handler)

	evt := sentEvent()
	require.NoError(t, bus.Publish(context.Background(), evt))

	seen := handler.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, evt, seen[0])
}

func TestPublishFansOutToAllHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	audit := newRecordingHandler(movement.EventTypeMovementSent)
	notify := newRecordingHandler(movement.EventTypeMovementSent)
	bus.Subscribe(audit)
	bus.Subscribe(notify)

	require.NoError(t, bus.Publish(context.Background(), sentEvent(), sentEvent()))

	assert.Len(t, audit.seen(), 2)
	assert.Len(t, notify.seen(), 2)
}

func TestPublishWildcardHandlerSeesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	wildcard := newRecordingHandler()
	bus.Subscribe(wildcard)

	require.NoError(t, bus.Publish(context.Background(), sentEvent()))
	assert.Len(t, wildcard.seen(), 1)
}

func TestPublishSkipsUnrelatedHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler(movement.EventTypeDeliveryConfirmed)
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), sentEvent()))
	assert.Empty(t, handler.seen())
}

func TestPublishContinuesPastFailingHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newRecordingHandler(movement.EventTypeMovementSent)
	failing.err = errors.New("audit store unavailable")
	healthy := newRecordingHandler(movement.EventTypeMovementSent)
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), sentEvent()))

	assert.Len(t, failing.seen(), 1)
	assert.Len(t, healthy.seen(), 1)
}

func TestPublishRecoversFromPanickingHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	panicking := newRecordingHandler(movement.EventTypeMovementSent)
	panicking.panicWith = "boom"
	healthy := newRecordingHandler(movement.EventTypeMovementSent)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(context.Background(), sentEvent()))
	})
	assert.Len(t, healthy.seen(), 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newRecordingHandler(movement.EventTypeMovementSent)
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), sentEvent()))
	require.Len(t, handler.seen(), 1)

	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), sentEvent()))
	assert.Len(t, handler.seen(), 1)
}

func TestStartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))

	handler := newRecordingHandler(movement.EventTypeMovementSent)
	bus.Subscribe(handler)
	require.NoError(t, bus.Publish(ctx, sentEvent()))
	assert.Len(t, handler.seen(), 1)

	require.NoError(t, bus.Stop(ctx))
}
