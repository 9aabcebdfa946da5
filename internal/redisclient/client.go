package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stock-monitor/internal/models"
	"stock-monitor/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const recentEventsKey = "stock:recent-events"
const recentEventsMax = 200

type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, logger: util.GetLogger()}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetStockSnapshot stores the latest observed stock state for a product
func (c *Client) SetStockSnapshot(ctx context.Context, productID int64, quantity, delta int, updatedAt time.Time) error {
	key := fmt.Sprintf("stock:%d", productID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "quantity", quantity)
	pipe.HSet(ctx, key, "delta", delta)
	pipe.HSet(ctx, key, "updated_at", updatedAt.Format(time.RFC3339))

	_, err := pipe.Exec(ctx)
	return err
}

// GetStockSnapshot retrieves the latest observed stock state for a
// product. An empty map means no observation has been mirrored yet.
func (c *Client) GetStockSnapshot(ctx context.Context, productID int64) (map[string]string, error) {
	key := fmt.Sprintf("stock:%d", productID)
	return c.rdb.HGetAll(ctx, key).Result()
}

// PushRecentEvent appends an event payload to the capped recent-event list
func (c *Client) PushRecentEvent(ctx context.Context, payload []byte) error {
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, recentEventsKey, payload)
	pipe.LTrim(ctx, recentEventsKey, 0, recentEventsMax-1)

	_, err := pipe.Exec(ctx)
	return err
}

// RecentEvents returns the newest n mirrored events
func (c *Client) RecentEvents(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		n = 50
	}
	return c.rdb.LRange(ctx, recentEventsKey, 0, n-1).Result()
}

// HandleEvent mirrors one bus event into Redis: the recent-event list
// always, the per-product snapshot when the event carries a quantity.
// Registered as a global bus subscriber; failures are logged and dropped.
func (c *Client) HandleEvent(event models.StockEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("Failed to marshal event for Redis mirror", zap.Error(err))
		return
	}

	if err := c.PushRecentEvent(ctx, payload); err != nil {
		c.logger.Error("Failed to mirror event to Redis", zap.Error(err))
	}

	if event.Quantity != nil && event.ProductID != 0 {
		delta := 0
		if event.Delta != nil {
			delta = *event.Delta
		}
		if err := c.SetStockSnapshot(ctx, event.ProductID, *event.Quantity, delta, event.Timestamp); err != nil {
			c.logger.Error("Failed to update stock snapshot in Redis",
				zap.Int64("product_id", event.ProductID),
				zap.Error(err))
		}
	}
}
