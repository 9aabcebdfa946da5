package eventbus

import (
	"sync"

	"stock-monitor/internal/models"
	"stock-monitor/internal/util"

	"go.uber.org/zap"
)

// Handler consumes one stock event.
type Handler func(event models.StockEvent)

// Bus is an in-process publish/subscribe dispatcher keyed by event type,
// plus a global subscriber list. Each instance is independent; construct
// one per engine (or per test) instead of sharing process-wide state.
type Bus struct {
	mu             sync.RWMutex
	handlers       map[models.EventType][]Handler
	globalHandlers []Handler
	logger         *zap.Logger
}

func New() *Bus {
	return &Bus{
		handlers: make(map[models.EventType][]Handler),
		logger:   util.GetLogger(),
	}
}

// Subscribe registers a handler for one event type. Handlers run in
// registration order.
func (b *Bus) Subscribe(eventType models.EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type. Global handlers
// run after type-specific ones, in registration order.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globalHandlers = append(b.globalHandlers, handler)
}

// Emit dispatches the event synchronously to every matching handler and
// then every global handler. A panicking handler is recovered and logged;
// it never prevents the remaining handlers from running.
func (b *Bus) Emit(event models.StockEvent) {
	b.mu.RLock()
	specific := b.handlers[event.Type]
	handlers := make([]Handler, 0, len(specific)+len(b.globalHandlers))
	handlers = append(handlers, specific...)
	handlers = append(handlers, b.globalHandlers...)
	b.mu.RUnlock()

	util.EventsEmittedTotal.WithLabelValues(string(event.Type)).Inc()

	for _, handler := range handlers {
		b.invoke(handler, event)
	}
}

func (b *Bus) invoke(handler Handler, event models.StockEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.Int64("product_id", event.ProductID),
				zap.Any("panic", r))
		}
	}()
	handler(event)
}

// Clear removes all registrations. Used for test isolation.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[models.EventType][]Handler)
	b.globalHandlers = nil
}
