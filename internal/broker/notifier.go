package broker

import (
	"context"
	"fmt"
	"time"

	"stock-monitor/internal/models"
	"stock-monitor/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PublishedEvent is the wire envelope for stock events on the
// notification topic. The event ID lets downstream consumers deduplicate;
// delivery is at-least-once, not exactly-once.
type PublishedEvent struct {
	EventID string `json:"event_id"`
	models.StockEvent
}

// StockEventNotifier forwards bus events to the Kafka notification topic.
// It is registered as a bus subscriber; a publish failure is logged and
// dropped so that notification trouble never disturbs monitoring.
type StockEventNotifier struct {
	producer *Producer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewStockEventNotifier creates a notifier over the given producer
func NewStockEventNotifier(producer *Producer) *StockEventNotifier {
	return &StockEventNotifier{
		producer: producer,
		timeout:  10 * time.Second,
		logger:   util.GetLogger(),
	}
}

// HandleEvent publishes one stock event, keyed by product so per-product
// ordering is preserved.
func (n *StockEventNotifier) HandleEvent(event models.StockEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	envelope := PublishedEvent{
		EventID:    uuid.New().String(),
		StockEvent: event,
	}

	key := fmt.Sprintf("product-%d", event.ProductID)
	if err := n.producer.PublishMessage(ctx, key, envelope); err != nil {
		n.logger.Error("Failed to publish stock event",
			zap.String("event_type", string(event.Type)),
			zap.Int64("product_id", event.ProductID),
			zap.Error(err))
	}
}
