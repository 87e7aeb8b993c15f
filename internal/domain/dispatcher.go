package domain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"lawwarden.io/warden/internal/pkg/logger"
)

// EventHandler processes a domain event.
type EventHandler func(ctx context.Context, event *DomainEvent) error

// Publisher is the publishing side of the dispatcher.
type Publisher interface {
	Dispatch(ctx context.Context, event *DomainEvent) error
}

// EventDispatcher routes domain events to registered handlers in-process.
// Handlers run synchronously on the publisher's goroutine so deletion events
// finish their cleanup before the publisher continues.
type EventDispatcher struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

// NewEventDispatcher creates a new EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Register registers a handler for a specific event type.
func (d *EventDispatcher) Register(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch dispatches an event to all registered handlers.
// All handlers are called sequentially. If any handler fails, the error is logged
// but remaining handlers are still executed (best-effort delivery).
func (d *EventDispatcher) Dispatch(ctx context.Context, event *DomainEvent) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.EventType]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Debug("No handlers registered for event type",
			zap.String("event_type", string(event.EventType)),
			zap.String("event_id", event.EventID),
		)
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Error("Event handler failed",
				zap.String("event_type", string(event.EventType)),
				zap.String("event_id", event.EventID),
				zap.String("aggregate_id", event.AggregateID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s failed: %w", event.EventType, err)
			}
		}
	}

	return firstErr
}

// Publish builds an event and dispatches it. A nil publisher is a no-op.
func Publish(ctx context.Context, pub Publisher, eventType EventType, aggregateType, aggregateID, actor string, payload any) error {
	if pub == nil {
		return nil
	}
	event, err := NewEvent(eventType, aggregateType, aggregateID, actor, payload)
	if err != nil {
		return err
	}
	return pub.Dispatch(ctx, event)
}
