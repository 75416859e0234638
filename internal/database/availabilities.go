package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"halltime/internal/models"
)

// CreateAvailabilityWithGuard inserts a window after verifying, inside one
// transaction, that it overlaps no existing window of the same hall.
func (db *DB) CreateAvailabilityWithGuard(ctx context.Context, avail *models.Availability) error {
	if !avail.Start.Before(avail.End) {
		return ErrInvalidRange
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var overlapping int
	queryCount := `SELECT COUNT(*) FROM availabilities WHERE hall_id = ? AND start_time < ? AND end_time > ?`
	err = tx.QueryRowContext(ctx, queryCount, avail.HallID, fmtTime(avail.End), fmtTime(avail.Start)).
		Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check availability overlap in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrAvailabilityOverlap
	}

	now := time.Now()
	queryInsert := `INSERT INTO availabilities (hall_id, start_time, end_time, created_at) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, queryInsert, avail.HallID, fmtTime(avail.Start), fmtTime(avail.End), now)
	if err != nil {
		return fmt.Errorf("failed to insert availability in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	avail.ID = id
	avail.CreatedAt = now

	return tx.Commit()
}

func (db *DB) GetAvailability(ctx context.Context, id int64) (*models.Availability, error) {
	query := `SELECT id, hall_id, start_time, end_time, created_at FROM availabilities WHERE id = ?`
	var a models.Availability
	var startStr, endStr string
	err := db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.HallID, &startStr, &endStr, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}

	if a.Start, err = parseTime(startStr); err != nil {
		return nil, err
	}
	if a.End, err = parseTime(endStr); err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *DB) DeleteAvailability(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM availabilities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAvailabilities returns all windows, or only those of one hall when
// hallID is non-zero.
func (db *DB) ListAvailabilities(ctx context.Context, hallID int64) ([]*models.Availability, error) {
	query := `SELECT id, hall_id, start_time, end_time, created_at FROM availabilities`
	var args []any
	if hallID != 0 {
		query += ` WHERE hall_id = ?`
		args = append(args, hallID)
	}
	query += ` ORDER BY hall_id, start_time`

	return db.queryAvailabilities(ctx, query, args...)
}

// ListAvailabilitiesIntersecting returns the hall's windows that intersect
// [start, end), ordered by start.
func (db *DB) ListAvailabilitiesIntersecting(ctx context.Context, hallID int64, start, end time.Time) ([]*models.Availability, error) {
	query := `SELECT id, hall_id, start_time, end_time, created_at FROM availabilities
              WHERE hall_id = ? AND start_time < ? AND end_time > ? ORDER BY start_time`
	return db.queryAvailabilities(ctx, query, hallID, fmtTime(end), fmtTime(start))
}

func (db *DB) queryAvailabilities(ctx context.Context, query string, args ...any) ([]*models.Availability, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}
	defer rows.Close()

	var avails []*models.Availability
	for rows.Next() {
		a := &models.Availability{}
		var startStr, endStr string
		if err := rows.Scan(&a.ID, &a.HallID, &startStr, &endStr, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		if a.Start, err = parseTime(startStr); err != nil {
			return nil, err
		}
		if a.End, err = parseTime(endStr); err != nil {
			return nil, err
		}
		avails = append(avails, a)
	}
	return avails, rows.Err()
}
