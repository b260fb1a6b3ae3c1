package event

import (
	"sync"

	"github.com/gestock/backend/internal/domain/shared"
)

// HandlerRegistry tracks which handlers listen for which event types.
// Handlers registered without event types are wildcard subscribers and
// receive every event on the bus.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: make(map[string][]shared.EventHandler),
	}
}

// Add registers the handler under each event type, or as a wildcard
// subscriber when no types are given.
func (r *HandlerRegistry) Add(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}

	for _, eventType := range eventTypes {
		r.byType[eventType] = append(r.byType[eventType], handler)
	}
}

// Remove drops the handler from every subscription, wildcard included.
func (r *HandlerRegistry) Remove(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = without(r.wildcard, handler)

	for eventType, handlers := range r.byType {
		remaining := without(handlers, handler)
		if len(remaining) == 0 {
			delete(r.byType, eventType)
			continue
		}
		r.byType[eventType] = remaining
	}
}

// HandlersFor returns the handlers subscribed to the given event type,
// followed by the wildcard subscribers. The returned slice is a copy.
func (r *HandlerRegistry) HandlersFor(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.byType[eventType]
	result := make([]shared.EventHandler, 0, len(typed)+len(r.wildcard))
	result = append(result, typed...)
	result = append(result, r.wildcard...)
	return result
}

// All returns every distinct registered handler.
func (r *HandlerRegistry) All() []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[shared.EventHandler]bool)
	var result []shared.EventHandler

	for _, h := range r.wildcard {
		if !seen[h] {
			seen[h] = true
			result = append(result, h)
		}
	}
	for _, handlers := range r.byType {
		for _, h := range handlers {
			if !seen[h] {
				seen[h] = true
				result = append(result, h)
			}
		}
	}

	return result
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := handlers[:0:0]
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}
