package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stock-monitor/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping verifies the database connection, used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateMonitor creates a new monitor configuration
func (s *Store) CreateMonitor(ctx context.Context, monitor *models.MonitorConfig) error {
	query := `
		INSERT INTO monitor_configs
			(product_id, product_name, is_active, threshold_low, threshold_high,
			 notify_on_restock, notify_on_purchase, notify_on_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, monitor, query,
		monitor.ProductID, monitor.ProductName, monitor.IsActive,
		monitor.ThresholdLow, monitor.ThresholdHigh,
		monitor.NotifyOnRestock, monitor.NotifyOnPurchase, monitor.NotifyOnThreshold)
}

// GetMonitorByID retrieves a monitor configuration by ID
func (s *Store) GetMonitorByID(ctx context.Context, id int64) (*models.MonitorConfig, error) {
	var monitor models.MonitorConfig
	err := s.db.GetContext(ctx, &monitor, "SELECT * FROM monitor_configs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("monitor not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &monitor, nil
}

// GetMonitorByProductID retrieves a monitor configuration by product ID.
// Returns nil without error when no monitor exists for the product.
func (s *Store) GetMonitorByProductID(ctx context.Context, productID int64) (*models.MonitorConfig, error) {
	var monitor models.MonitorConfig
	err := s.db.GetContext(ctx, &monitor, "SELECT * FROM monitor_configs WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &monitor, nil
}

// GetMonitors retrieves all monitor configurations
func (s *Store) GetMonitors(ctx context.Context) ([]models.MonitorConfig, error) {
	var monitors []models.MonitorConfig
	err := s.db.SelectContext(ctx, &monitors, "SELECT * FROM monitor_configs ORDER BY id")
	return monitors, err
}

// GetActiveMonitors retrieves all active monitor configurations
func (s *Store) GetActiveMonitors(ctx context.Context) ([]models.MonitorConfig, error) {
	var monitors []models.MonitorConfig
	err := s.db.SelectContext(ctx, &monitors,
		"SELECT * FROM monitor_configs WHERE is_active = true ORDER BY id")
	return monitors, err
}

// UpdateMonitor applies a partial update to a monitor configuration.
// Only non-nil fields of the update are written.
func (s *Store) UpdateMonitor(ctx context.Context, id int64, upd models.MonitorConfigUpdate) (*models.MonitorConfig, error) {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.ProductName != nil {
		add("product_name", *upd.ProductName)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.ThresholdLow != nil {
		add("threshold_low", *upd.ThresholdLow)
	}
	if upd.ThresholdHigh != nil {
		add("threshold_high", *upd.ThresholdHigh)
	}
	if upd.NotifyOnRestock != nil {
		add("notify_on_restock", *upd.NotifyOnRestock)
	}
	if upd.NotifyOnPurchase != nil {
		add("notify_on_purchase", *upd.NotifyOnPurchase)
	}
	if upd.NotifyOnThreshold != nil {
		add("notify_on_threshold", *upd.NotifyOnThreshold)
	}

	if len(sets) == 0 {
		return s.GetMonitorByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE monitor_configs SET %s WHERE id = $%d RETURNING *",
		strings.Join(sets, ", "), len(args))

	var monitor models.MonitorConfig
	err := s.db.GetContext(ctx, &monitor, query, args...)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("monitor not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &monitor, nil
}

// DeleteMonitor deletes a monitor configuration. Its stock records are
// removed by the foreign key cascade.
func (s *Store) DeleteMonitor(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM monitor_configs WHERE id = $1", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("monitor not found: %d", id)
	}
	return nil
}
