package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"halltime/internal/interval"
	"halltime/internal/models"
)

const appointmentColumns = `id, reference, hall_id, user_id, start_time, end_time, status, checked_in,
                 created_at, updated_at, version`

// CreateAppointmentWithGuard validates the booking guards and inserts the
// pending appointment as one atomic unit: the requested range must be fully
// contained in an open window of the hall and must not overlap any approved
// appointment. Pending appointments may overlap each other; only one of them
// can later be approved.
func (db *DB) CreateAppointmentWithGuard(ctx context.Context, appt *models.Appointment) error {
	if !appt.Start.Before(appt.End) {
		return ErrInvalidRange
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var covered int
	queryCovered := `SELECT COUNT(*) FROM availabilities
                     WHERE hall_id = ? AND start_time <= ? AND end_time >= ?`
	err = tx.QueryRowContext(ctx, queryCovered, appt.HallID, fmtTime(appt.Start), fmtTime(appt.End)).
		Scan(&covered)
	if err != nil {
		return fmt.Errorf("failed to check availability coverage in tx: %w", err)
	}
	if covered == 0 {
		return ErrOutsideAvailability
	}

	var conflicts int
	queryConflict := `SELECT COUNT(*) FROM appointments
                      WHERE hall_id = ? AND status = ? AND start_time < ? AND end_time > ?`
	err = tx.QueryRowContext(ctx, queryConflict, appt.HallID, models.StatusApproved,
		fmtTime(appt.End), fmtTime(appt.Start)).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("failed to check appointment conflict in tx: %w", err)
	}
	if conflicts > 0 {
		return ErrAppointmentConflict
	}

	now := time.Now()
	queryInsert := `INSERT INTO appointments (reference, hall_id, user_id, start_time, end_time, status, checked_in,
                    created_at, updated_at, version)
                    VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, 1)`
	result, err := tx.ExecContext(ctx, queryInsert,
		appt.Reference, appt.HallID, appt.UserID,
		fmtTime(appt.Start), fmtTime(appt.End), models.StatusPending, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert appointment in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	appt.ID = id
	appt.Status = models.StatusPending
	appt.CheckedIn = false
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Version = 1

	return tx.Commit()
}

// ApproveAppointmentWithGuard re-runs the no-overlap check against the other
// approved appointments of the hall and flips pending to approved, all in one
// transaction. State may have changed since the request was created; a
// conflict leaves the appointment pending.
func (db *DB) ApproveAppointmentWithGuard(ctx context.Context, id, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var hallID int64
	var status, startStr, endStr string
	queryLoad := `SELECT hall_id, status, start_time, end_time FROM appointments WHERE id = ?`
	err = tx.QueryRowContext(ctx, queryLoad, id).Scan(&hallID, &status, &startStr, &endStr)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load appointment in tx: %w", err)
	}
	if status != models.StatusPending {
		return ErrInvalidTransition
	}

	var conflicts int
	queryConflict := `SELECT COUNT(*) FROM appointments
                      WHERE hall_id = ? AND status = ? AND id != ? AND start_time < ? AND end_time > ?`
	err = tx.QueryRowContext(ctx, queryConflict, hallID, models.StatusApproved, id, endStr, startStr).
		Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("failed to re-check appointment conflict in tx: %w", err)
	}
	if conflicts > 0 {
		return ErrAppointmentConflict
	}

	queryUpdate := `UPDATE appointments SET status = ?, version = version + 1, updated_at = ?
                    WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, queryUpdate, models.StatusApproved, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to approve appointment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	return tx.Commit()
}

// UpdateAppointmentStatusWithVersion applies reject/cancel style transitions
// with optimistic locking. Callers verify the transition is legal first; the
// version guard makes a stale decision fail instead of double-applying.
func (db *DB) UpdateAppointmentStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE appointments SET status = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// SetCheckedIn flips the one-shot flag. The WHERE clause repeats the guard so
// two concurrent check-ins cannot both succeed.
func (db *DB) SetCheckedIn(ctx context.Context, id int64) error {
	query := `UPDATE appointments SET checked_in = 1, version = version + 1, updated_at = ?
              WHERE id = ? AND status = ? AND checked_in = 0`
	result, err := db.ExecContext(ctx, query, time.Now(), id, models.StatusApproved)
	if err != nil {
		return fmt.Errorf("failed to set checked_in: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyCheckedIn
	}
	return nil
}

func (db *DB) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	row := db.QueryRowContext(ctx, query, id)

	appt, err := scanAppointment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

// ListBusyIntersecting returns the time ranges consumed by approved and
// pending appointments of the hall within [start, end).
func (db *DB) ListBusyIntersecting(ctx context.Context, hallID int64, start, end time.Time) ([]interval.Span, error) {
	query := `SELECT start_time, end_time FROM appointments
              WHERE hall_id = ? AND status IN (?, ?) AND start_time < ? AND end_time > ?
              ORDER BY start_time`
	rows, err := db.QueryContext(ctx, query, hallID,
		models.StatusApproved, models.StatusPending, fmtTime(end), fmtTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list busy intervals: %w", err)
	}
	defer rows.Close()

	var busy []interval.Span
	for rows.Next() {
		var startStr, endStr string
		if err := rows.Scan(&startStr, &endStr); err != nil {
			return nil, fmt.Errorf("failed to scan busy interval: %w", err)
		}
		var span interval.Span
		if span.Start, err = parseTime(startStr); err != nil {
			return nil, err
		}
		if span.End, err = parseTime(endStr); err != nil {
			return nil, err
		}
		busy = append(busy, span)
	}
	return busy, rows.Err()
}

// AppointmentFilter narrows ListAppointments. Zero values mean "no filter".
type AppointmentFilter struct {
	HallID int64
	UserID int64
	Status string
	From   time.Time
	To     time.Time
}

func (db *DB) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []any

	if filter.HallID != 0 {
		query += ` AND hall_id = ?`
		args = append(args, filter.HallID)
	}
	if filter.UserID != 0 {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		query += ` AND start_time < ? AND end_time > ?`
		args = append(args, fmtTime(filter.To), fmtTime(filter.From))
	}
	query += ` ORDER BY start_time DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func scanAppointment(scan func(...any) error) (*models.Appointment, error) {
	a := &models.Appointment{}
	var startStr, endStr string
	err := scan(&a.ID, &a.Reference, &a.HallID, &a.UserID, &startStr, &endStr,
		&a.Status, &a.CheckedIn, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	if a.Start, err = parseTime(startStr); err != nil {
		return nil, err
	}
	if a.End, err = parseTime(endStr); err != nil {
		return nil, err
	}
	return a, nil
}
