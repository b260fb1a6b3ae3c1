package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gestock/backend/internal/domain/shared"
)

// EventRecorder is a shared.EventHandler that captures everything it
// receives. It is safe for concurrent use, matching how the in-memory
// bus dispatches.
type EventRecorder struct {
	mu         sync.Mutex
	eventTypes []string
	captured   []shared.DomainEvent
	failWith   error
}

// NewEventRecorder creates a recorder subscribed to the given event
// types. With no types it acts as a wildcard handler.
func NewEventRecorder(eventTypes ...string) *EventRecorder {
	return &EventRecorder{eventTypes: eventTypes}
}

// EventTypes implements shared.EventHandler.
func (r *EventRecorder) EventTypes() []string {
	return r.eventTypes
}

// Handle implements shared.EventHandler.
func (r *EventRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = append(r.captured, event)
	return r.failWith
}

// Captured returns a copy of the events seen so far, in arrival order.
func (r *EventRecorder) Captured() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.DomainEvent, len(r.captured))
	copy(out, r.captured)
	return out
}

// Count returns how many events the recorder has seen.
func (r *EventRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.captured)
}

// FailWith makes subsequent Handle calls return err. Events are still
// captured, mirroring a handler that fails after doing partial work.
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// Reset drops captured events and clears any injected failure.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = nil
	r.failWith = nil
}

// WorkflowEvent is a minimal domain event for bus and handler tests that
// do not care about event payloads.
type WorkflowEvent struct {
	shared.BaseDomainEvent
}

// NewWorkflowEvent builds a WorkflowEvent of the given type, raised by a
// fresh MovementRequest aggregate under the fixture tenant.
func NewWorkflowEvent(eventType string) *WorkflowEvent {
	return &WorkflowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, uuid.New(), "MovementRequest", TenantID()),
	}
}

// WaitForEvents blocks until the recorder has captured at least n events
// or the timeout elapses, failing the test on timeout.
func WaitForEvents(t *testing.T, rec *EventRecorder, n int, timeout time.Duration) {
	t.Helper()
	Eventually(t, func() bool { return rec.Count() >= n }, timeout, 10*time.Millisecond,
		"recorder did not reach %d events", n)
}
