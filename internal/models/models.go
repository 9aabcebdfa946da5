package models

import "time"

// MonitorConfig describes one tracked product: which product to watch,
// its quantity thresholds and which notifications are enabled for it.
type MonitorConfig struct {
	ID          int64   `db:"id" json:"id"`
	ProductID   int64   `db:"product_id" json:"product_id"`
	ProductName *string `db:"product_name" json:"product_name,omitempty"`

	IsActive bool `db:"is_active" json:"is_active"`

	ThresholdLow  *int `db:"threshold_low" json:"threshold_low,omitempty"`
	ThresholdHigh *int `db:"threshold_high" json:"threshold_high,omitempty"`

	NotifyOnRestock   bool `db:"notify_on_restock" json:"notify_on_restock"`
	NotifyOnPurchase  bool `db:"notify_on_purchase" json:"notify_on_purchase"`
	NotifyOnThreshold bool `db:"notify_on_threshold" json:"notify_on_threshold"`

	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	LastCheckedAt *time.Time `db:"last_checked_at" json:"last_checked_at,omitempty"`
}

// MonitorConfigUpdate is an explicit partial update for a monitor config.
// Nil fields are left untouched.
type MonitorConfigUpdate struct {
	ProductName       *string `json:"product_name,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
	ThresholdLow      *int    `json:"threshold_low,omitempty"`
	ThresholdHigh     *int    `json:"threshold_high,omitempty"`
	NotifyOnRestock   *bool   `json:"notify_on_restock,omitempty"`
	NotifyOnPurchase  *bool   `json:"notify_on_purchase,omitempty"`
	NotifyOnThreshold *bool   `json:"notify_on_threshold,omitempty"`
}

// StockRecord is one point-in-time observation of a product's quantity.
// Records are append-only; the most recent record per monitor is the
// product's current state.
type StockRecord struct {
	ID              int64 `db:"id" json:"id"`
	MonitorConfigID int64 `db:"monitor_config_id" json:"monitor_config_id"`

	Quantity int `db:"quantity" json:"quantity"`
	Delta    int `db:"delta" json:"delta"`

	StockControlEnabled bool `db:"stock_control_enabled" json:"stock_control_enabled"`
	Available           bool `db:"available" json:"available"`

	ChangeType        string  `db:"change_type" json:"change_type"`
	ThresholdBreached bool    `db:"threshold_breached" json:"threshold_breached"`
	ThresholdType     *string `db:"threshold_type" json:"threshold_type,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Change types for a stock record relative to the prior observation.
const (
	ChangeInitial   = "initial"
	ChangeRestock   = "restock"
	ChangePurchase  = "purchase"
	ChangeUnchanged = "unchanged"
)

// Threshold breach types.
const (
	ThresholdLow  = "low"
	ThresholdHigh = "high"
)

// CycleResult aggregates the outcome of one monitoring cycle.
type CycleResult struct {
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
	MonitorsChecked   int       `json:"monitors_checked"`
	RecordsCreated    int       `json:"records_created"`
	ChangesDetected   int       `json:"changes_detected"`
	ThresholdBreaches int       `json:"threshold_breaches"`
	Errors            int       `json:"errors"`
}
