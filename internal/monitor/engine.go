package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-monitor/internal/eventbus"
	"stock-monitor/internal/models"
	"stock-monitor/internal/util"
	"stock-monitor/internal/whmcs"

	"go.uber.org/zap"
)

// Store is the persistence surface the engine needs: active configs,
// the most recent observation per monitor, and the atomic write of one
// completed check.
type Store interface {
	GetActiveMonitors(ctx context.Context) ([]models.MonitorConfig, error)
	GetLatestStockRecord(ctx context.Context, monitorConfigID int64) (*models.StockRecord, error)
	RecordCheck(ctx context.Context, record *models.StockRecord, productName *string, checkedAt time.Time) error
}

// InventoryFetcher fetches the live stock state of one product.
type InventoryFetcher interface {
	FetchInventory(ctx context.Context, productID int64, useCache bool) (*whmcs.InventorySnapshot, error)
}

// Engine runs monitoring cycles: one pass over all active monitors,
// fetching live inventory, detecting changes and threshold breaches,
// persisting observations and emitting events. One monitor's failure
// never aborts the cycle.
type Engine struct {
	store  Store
	client InventoryFetcher
	bus    *eventbus.Bus
	logger *zap.Logger
}

// NewEngine creates a new monitoring engine
func NewEngine(store Store, client InventoryFetcher, bus *eventbus.Bus) *Engine {
	return &Engine{
		store:  store,
		client: client,
		bus:    bus,
		logger: util.GetLogger(),
	}
}

// RunCycle checks every active monitor once and returns the aggregate
// result. Per-monitor failures are recovered, counted and reported via
// monitor-error events; only a structural failure (the active monitor
// list cannot be loaded) returns an error.
func (e *Engine) RunCycle(ctx context.Context) (models.CycleResult, error) {
	ctx, span := util.StartSpan(ctx, "Engine.RunCycle")
	defer span.End()

	start := time.Now().UTC()
	e.logger.Info("Starting monitoring cycle")

	e.bus.Emit(models.StockEvent{
		Type:      models.EventMonitorStarted,
		Timestamp: start,
		Metadata:  map[string]interface{}{"timestamp": start.Format(time.RFC3339)},
	})

	result := models.CycleResult{StartedAt: start}

	monitors, err := e.store.GetActiveMonitors(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load active monitors: %w", err)
	}

	// monitors_checked counts configs loaded at cycle start, not
	// successfully processed ones.
	result.MonitorsChecked = len(monitors)

	for i := range monitors {
		monitor := &monitors[i]

		recordCreated, changeDetected, thresholdBreached, err := e.checkMonitor(ctx, monitor)
		if err != nil {
			e.logger.Error("Error checking monitor",
				zap.Int64("monitor_id", monitor.ID),
				zap.Int64("product_id", monitor.ProductID),
				zap.Error(err))
			result.Errors++
			util.MonitorErrorsTotal.WithLabelValues(errorKind(err)).Inc()

			e.bus.Emit(models.StockEvent{
				Type:            models.EventMonitorError,
				MonitorConfigID: monitor.ID,
				ProductID:       monitor.ProductID,
				ProductName:     monitorName(monitor),
				ErrorMessage:    err.Error(),
				Metadata:        map[string]interface{}{"error_type": errorKind(err)},
				Timestamp:       time.Now().UTC(),
			})
			continue
		}

		if recordCreated {
			result.RecordsCreated++
		}
		if changeDetected {
			result.ChangesDetected++
		}
		if thresholdBreached {
			result.ThresholdBreaches++
		}
	}

	result.CompletedAt = time.Now().UTC()

	util.CyclesRunTotal.Inc()
	util.CycleDuration.Observe(result.CompletedAt.Sub(start).Seconds())
	util.MonitorsCheckedTotal.Add(float64(result.MonitorsChecked))
	util.RecordsCreatedTotal.Add(float64(result.RecordsCreated))

	e.logger.Info("Monitoring cycle completed",
		zap.Int("monitors_checked", result.MonitorsChecked),
		zap.Int("records_created", result.RecordsCreated),
		zap.Int("changes_detected", result.ChangesDetected),
		zap.Int("threshold_breaches", result.ThresholdBreaches),
		zap.Int("errors", result.Errors))

	e.bus.Emit(models.StockEvent{
		Type:      models.EventMonitorCompleted,
		Timestamp: result.CompletedAt,
		Metadata: map[string]interface{}{
			"started_at":         result.StartedAt.Format(time.RFC3339),
			"completed_at":       result.CompletedAt.Format(time.RFC3339),
			"monitors_checked":   result.MonitorsChecked,
			"records_created":    result.RecordsCreated,
			"changes_detected":   result.ChangesDetected,
			"threshold_breaches": result.ThresholdBreaches,
			"errors":             result.Errors,
		},
	})

	return result, nil
}

// checkMonitor performs one monitor's check: live fetch, change and
// threshold classification, one transactional write, event emission.
func (e *Engine) checkMonitor(ctx context.Context, monitor *models.MonitorConfig) (recordCreated, changeDetected, thresholdBreached bool, err error) {
	// Cache bypassed: a monitoring check must observe live quantity.
	inventory, err := e.client.FetchInventory(ctx, monitor.ProductID, false)
	if err != nil {
		return false, false, false, err
	}

	var productName *string
	if monitor.ProductName == nil && inventory.Name != "" {
		name := inventory.Name
		productName = &name
		monitor.ProductName = &name
	}

	latest, err := e.store.GetLatestStockRecord(ctx, monitor.ID)
	if err != nil {
		return false, false, false, err
	}

	var previousQuantity *int
	delta := 0
	if latest != nil {
		previousQuantity = &latest.Quantity
		delta = inventory.Quantity - latest.Quantity
	}

	changeType := ClassifyChange(previousQuantity, delta)
	breached, thresholdType := ClassifyThreshold(inventory.Quantity, monitor.ThresholdLow, monitor.ThresholdHigh)

	record := models.StockRecord{
		MonitorConfigID:     monitor.ID,
		Quantity:            inventory.Quantity,
		Delta:               delta,
		StockControlEnabled: inventory.StockControl,
		Available:           inventory.Available,
		ChangeType:          changeType,
		ThresholdBreached:   breached,
		CreatedAt:           time.Now().UTC(),
	}
	if breached {
		record.ThresholdType = &thresholdType
	}

	if err := e.store.RecordCheck(ctx, &record, productName, record.CreatedAt); err != nil {
		return false, false, false, err
	}

	e.emitEvents(monitor, &record, previousQuantity)

	return true, delta != 0, breached, nil
}

// emitEvents applies the notification rules for one completed check.
// A threshold event and a delta event are independent and may both fire.
func (e *Engine) emitEvents(monitor *models.MonitorConfig, record *models.StockRecord, previousQuantity *int) {
	base := models.StockEvent{
		MonitorConfigID:  monitor.ID,
		ProductID:        monitor.ProductID,
		ProductName:      monitorName(monitor),
		Quantity:         &record.Quantity,
		PreviousQuantity: previousQuantity,
		Delta:            &record.Delta,
		Timestamp:        time.Now().UTC(),
		Metadata: map[string]interface{}{
			"change_type":   record.ChangeType,
			"stock_control": record.StockControlEnabled,
			"available":     record.Available,
		},
	}

	if record.ThresholdBreached && monitor.NotifyOnThreshold {
		event := base
		if record.ThresholdType != nil && *record.ThresholdType == models.ThresholdLow {
			event.Type = models.EventThresholdBreachLow
			event.ThresholdValue = monitor.ThresholdLow
			event.ThresholdType = models.ThresholdLow
		} else {
			event.Type = models.EventThresholdBreachHigh
			event.ThresholdValue = monitor.ThresholdHigh
			event.ThresholdType = models.ThresholdHigh
		}
		e.bus.Emit(event)
	}

	switch {
	case record.Delta > 0 && monitor.NotifyOnRestock:
		event := base
		event.Type = models.EventStockIncreased
		e.bus.Emit(event)
	case record.Delta < 0 && monitor.NotifyOnPurchase:
		event := base
		event.Type = models.EventStockDecreased
		e.bus.Emit(event)
	case record.Delta == 0 && previousQuantity != nil:
		// Never emitted on the very first observation.
		event := base
		event.Type = models.EventStockUnchanged
		e.bus.Emit(event)
	}
}

func monitorName(monitor *models.MonitorConfig) string {
	if monitor.ProductName != nil {
		return *monitor.ProductName
	}
	return ""
}

// errorKind maps a per-monitor failure to its classification for the
// monitor-error event and the error metric label.
func errorKind(err error) string {
	var authErr *whmcs.AuthError
	var apiErr *whmcs.APIError
	var connErr *whmcs.ConnectionError
	var timeoutErr *whmcs.TimeoutError
	var validationErr *whmcs.ValidationError

	switch {
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &validationErr):
		return "validation"
	default:
		return "internal"
	}
}
