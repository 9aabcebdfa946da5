package eventbus

import (
	"testing"

	"stock-monitor/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEmitDispatchesToSubscribers(t *testing.T) {
	bus := New()

	var got []models.StockEvent
	bus.Subscribe(models.EventStockIncreased, func(e models.StockEvent) {
		got = append(got, e)
	})

	bus.Emit(models.StockEvent{Type: models.EventStockIncreased, ProductID: 7})
	bus.Emit(models.StockEvent{Type: models.EventStockDecreased, ProductID: 8})

	assert.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ProductID)
}

func TestEmitRegistrationOrder(t *testing.T) {
	bus := New()

	var order []string
	bus.Subscribe(models.EventStockIncreased, func(models.StockEvent) {
		order = append(order, "first")
	})
	bus.Subscribe(models.EventStockIncreased, func(models.StockEvent) {
		order = append(order, "second")
	})
	bus.SubscribeAll(func(models.StockEvent) {
		order = append(order, "global")
	})

	bus.Emit(models.StockEvent{Type: models.EventStockIncreased})

	assert.Equal(t, []string{"first", "second", "global"}, order)
}

func TestGlobalSubscriberSeesAllTypes(t *testing.T) {
	bus := New()

	var count int
	bus.SubscribeAll(func(models.StockEvent) { count++ })

	bus.Emit(models.StockEvent{Type: models.EventStockIncreased})
	bus.Emit(models.StockEvent{Type: models.EventMonitorError})
	bus.Emit(models.StockEvent{Type: models.EventMonitorCompleted})

	assert.Equal(t, 3, count)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := New()

	var reached []string
	bus.Subscribe(models.EventStockIncreased, func(models.StockEvent) {
		panic("handler blew up")
	})
	bus.Subscribe(models.EventStockIncreased, func(models.StockEvent) {
		reached = append(reached, "specific")
	})
	bus.SubscribeAll(func(models.StockEvent) {
		reached = append(reached, "global")
	})

	assert.NotPanics(t, func() {
		bus.Emit(models.StockEvent{Type: models.EventStockIncreased})
	})
	assert.Equal(t, []string{"specific", "global"}, reached)
}

func TestClearRemovesAllSubscribers(t *testing.T) {
	bus := New()

	var count int
	bus.Subscribe(models.EventStockIncreased, func(models.StockEvent) { count++ })
	bus.SubscribeAll(func(models.StockEvent) { count++ })

	bus.Clear()
	bus.Emit(models.StockEvent{Type: models.EventStockIncreased})

	assert.Zero(t, count)
}
