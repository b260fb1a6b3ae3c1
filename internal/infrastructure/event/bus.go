// Package event provides the in-process event bus that carries domain
// events from the movement services to their subscribers.
package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/gestock/backend/internal/domain/shared"
)

// InMemoryEventBus dispatches domain events synchronously to every
// subscribed handler. A failing handler is logged and skipped so one
// subscriber cannot block the others from seeing the event.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool
}

func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Publish delivers each event to all handlers registered for its type,
// plus any wildcard handlers. Handler errors never fail the publish.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		for _, handler := range b.registry.HandlersFor(evt.EventType()) {
			if err := b.dispatch(ctx, handler, evt); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", evt.EventType()),
					zap.String("event_id", evt.EventID().String()),
					zap.String("aggregate_id", evt.AggregateID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. With no explicit event types the
// handler's own EventTypes() declaration is used; an empty declaration
// subscribes it to everything.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Add(handler, eventTypes...)
	b.logger.Debug("event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes the handler from every event type.
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Remove(handler)
	b.logger.Debug("event handler unsubscribed")
}

func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started")
	return nil
}

func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.logger.Info("event bus stopped")
	return nil
}

// dispatch invokes a single handler, converting a panic into an error
// so a misbehaving subscriber cannot take down the publisher.
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, evt)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
