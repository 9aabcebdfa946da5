package models

import "time"

// EventType identifies the kind of a stock event. The string values are
// wire-stable: they appear in published messages and must not change.
type EventType string

const (
	EventStockIncreased      EventType = "stock-increased"
	EventStockDecreased      EventType = "stock-decreased"
	EventStockUnchanged      EventType = "stock-unchanged"
	EventThresholdBreachLow  EventType = "threshold-breach-low"
	EventThresholdBreachHigh EventType = "threshold-breach-high"
	EventMonitorError        EventType = "monitor-error"
	EventMonitorStarted      EventType = "monitor-started"
	EventMonitorCompleted    EventType = "monitor-completed"
)

// StockEvent describes one detected condition during a monitoring check.
// Events are transient: they exist only for the duration of dispatch and
// are not persisted unless a subscriber stores them itself.
type StockEvent struct {
	Type EventType `json:"event_type"`

	MonitorConfigID int64  `json:"monitor_config_id"`
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name,omitempty"`

	Quantity         *int `json:"quantity,omitempty"`
	PreviousQuantity *int `json:"previous_quantity,omitempty"`
	Delta            *int `json:"delta,omitempty"`

	ThresholdValue *int   `json:"threshold_value,omitempty"`
	ThresholdType  string `json:"threshold_type,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
