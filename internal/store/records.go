package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stock-monitor/internal/models"
)

// GetLatestStockRecord retrieves the most recent stock record for a
// monitor. Returns nil without error when no observation exists yet.
func (s *Store) GetLatestStockRecord(ctx context.Context, monitorConfigID int64) (*models.StockRecord, error) {
	var record models.StockRecord
	err := s.db.GetContext(ctx, &record,
		"SELECT * FROM stock_records WHERE monitor_config_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1",
		monitorConfigID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetStockRecords retrieves recent stock records for a monitor, newest first
func (s *Store) GetStockRecords(ctx context.Context, monitorConfigID int64, limit int) ([]models.StockRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []models.StockRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM stock_records WHERE monitor_config_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		monitorConfigID, limit)
	return records, err
}

// RecordCheck persists the outcome of one monitoring check in a single
// transaction: the new stock record, the monitor's last_checked_at, and
// the name backfill when the upstream supplied one. A failure rolls back
// all of it, so a partially checked item never leaves state behind.
func (s *Store) RecordCheck(ctx context.Context, record *models.StockRecord, productName *string, checkedAt time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO stock_records
			(monitor_config_id, quantity, delta, stock_control_enabled, available,
			 change_type, threshold_breached, threshold_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err = tx.GetContext(ctx, &record.ID, query,
		record.MonitorConfigID, record.Quantity, record.Delta,
		record.StockControlEnabled, record.Available,
		record.ChangeType, record.ThresholdBreached, record.ThresholdType,
		record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stock record: %w", err)
	}

	if productName != nil {
		_, err = tx.ExecContext(ctx,
			"UPDATE monitor_configs SET product_name = $1, last_checked_at = $2, updated_at = NOW() WHERE id = $3",
			*productName, checkedAt, record.MonitorConfigID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE monitor_configs SET last_checked_at = $1, updated_at = NOW() WHERE id = $2",
			checkedAt, record.MonitorConfigID)
	}
	if err != nil {
		return fmt.Errorf("failed to update monitor: %w", err)
	}

	return tx.Commit()
}
