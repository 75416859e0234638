package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"halltime/internal/models"
)

func (db *DB) CreateHall(ctx context.Context, hall *models.Hall) error {
	query := `INSERT INTO halls (name, address, hourly_price, description, owner_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		hall.Name, hall.Address, hall.HourlyPrice, hall.Description, hall.OwnerID, now, now)
	if err != nil {
		return fmt.Errorf("failed to create hall: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	hall.ID = id
	hall.CreatedAt = now
	hall.UpdatedAt = now
	return nil
}

// SeedHalls inserts preconfigured halls keeping their fixed IDs. Rows that
// already exist are left untouched.
func (db *DB) SeedHalls(ctx context.Context, halls []models.Hall) error {
	query := `INSERT OR IGNORE INTO halls (id, name, address, hourly_price, description, owner_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	for i := range halls {
		h := &halls[i]
		if _, err := db.ExecContext(ctx, query,
			h.ID, h.Name, h.Address, h.HourlyPrice, h.Description, h.OwnerID, now, now); err != nil {
			return fmt.Errorf("failed to seed hall %d: %w", h.ID, err)
		}
	}
	return nil
}

func (db *DB) GetHall(ctx context.Context, id int64) (*models.Hall, error) {
	query := `SELECT id, name, address, hourly_price, description, owner_id, created_at, updated_at
              FROM halls WHERE id = ?`
	var h models.Hall
	err := db.QueryRowContext(ctx, query, id).Scan(
		&h.ID, &h.Name, &h.Address, &h.HourlyPrice, &h.Description, &h.OwnerID,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hall: %w", err)
	}
	return &h, nil
}

func (db *DB) UpdateHall(ctx context.Context, hall *models.Hall) error {
	query := `UPDATE halls SET name = ?, address = ?, hourly_price = ?, description = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		hall.Name, hall.Address, hall.HourlyPrice, hall.Description, time.Now(), hall.ID)
	if err != nil {
		return fmt.Errorf("failed to update hall: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteHall removes the hall together with its availability windows and
// appointments in one transaction.
func (db *DB) DeleteHall(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM halls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hall: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM availabilities WHERE hall_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete hall availabilities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE hall_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete hall appointments: %w", err)
	}

	return tx.Commit()
}

func (db *DB) ListHalls(ctx context.Context) ([]*models.Hall, error) {
	return db.queryHalls(ctx, `SELECT id, name, address, hourly_price, description, owner_id, created_at, updated_at
              FROM halls ORDER BY id`)
}

func (db *DB) ListHallsByOwner(ctx context.Context, ownerID int64) ([]*models.Hall, error) {
	return db.queryHalls(ctx, `SELECT id, name, address, hourly_price, description, owner_id, created_at, updated_at
              FROM halls WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (db *DB) queryHalls(ctx context.Context, query string, args ...any) ([]*models.Hall, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list halls: %w", err)
	}
	defer rows.Close()

	var halls []*models.Hall
	for rows.Next() {
		h := &models.Hall{}
		err := rows.Scan(&h.ID, &h.Name, &h.Address, &h.HourlyPrice, &h.Description, &h.OwnerID,
			&h.CreatedAt, &h.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hall: %w", err)
		}
		halls = append(halls, h)
	}
	return halls, rows.Err()
}
