package database

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halltime/internal/models"
)

func newAppointment(hallID, userID int64, startH, endH int) *models.Appointment {
	return &models.Appointment{
		Reference: uuid.NewString(),
		HallID:    hallID,
		UserID:    userID,
		Start:     hhmm(startH, 0),
		End:       hhmm(endH, 0),
	}
}

func TestCreateAppointmentWithGuard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	hall := createTestHall(t, db, "Arena", 1)
	createTestWindow(t, db, hall.ID, hhmm(9, 0), hhmm(12, 0))

	t.Run("InsideAvailability", func(t *testing.T) {
		appt := newAppointment(hall.ID, 10, 10, 11)
		require.NoError(t, db.CreateAppointmentWithGuard(ctx, appt))
		assert.Equal(t, models.StatusPending, appt.Status)
		assert.Equal(t, int64(1), appt.Version)
	})

	t.Run("OutsideAvailability", func(t *testing.T) {
		appt := &models.Appointment{
			Reference: uuid.NewString(), HallID: hall.ID, UserID: 10,
			Start: hhmm(11, 30), End: hhmm(13, 0),
		}
		err := db.CreateAppointmentWithGuard(ctx, appt)
		assert.ErrorIs(t, err, ErrOutsideAvailability)
	})

	t.Run("InvertedRange", func(t *testing.T) {
		appt := newAppointment(hall.ID, 10, 11, 10)
		assert.ErrorIs(t, db.CreateAppointmentWithGuard(ctx, appt), ErrInvalidRange)
	})

	t.Run("PendingOverlapAllowed", func(t *testing.T) {
		appt := newAppointment(hall.ID, 11, 10, 11)
		assert.NoError(t, db.CreateAppointmentWithGuard(ctx, appt))
	})

	t.Run("ApprovedOverlapRejected", func(t *testing.T) {
		first := newAppointment(hall.ID, 12, 9, 10)
		require.NoError(t, db.CreateAppointmentWithGuard(ctx, first))
		require.NoError(t, db.ApproveAppointmentWithGuard(ctx, first.ID, first.Version))

		second := newAppointment(hall.ID, 13, 9, 10)
		assert.ErrorIs(t, db.CreateAppointmentWithGuard(ctx, second), ErrAppointmentConflict)
	})
}

func TestApproveAppointmentWithGuard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	hall := createTestHall(t, db, "Arena", 1)
	createTestWindow(t, db, hall.ID, hhmm(9, 0), hhmm(18, 0))

	t.Run("ApproveRace", func(t *testing.T) {
		first := newAppointment(hall.ID, 10, 10, 11)
		second := newAppointment(hall.ID, 11, 10, 11)
		require.NoError(t, db.CreateAppointmentWithGuard(ctx, first))
		require.NoError(t, db.CreateAppointmentWithGuard(ctx, second))

		require.NoError(t, db.ApproveAppointmentWithGuard(ctx, first.ID, first.Version))

		err := db.ApproveAppointmentWithGuard(ctx, second.ID, second.Version)
		assert.ErrorIs(t, err, ErrAppointmentConflict)

		// The loser stays pending.
		got, err := db.GetAppointment(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
	})

	t.Run("NotPending", func(t *testing.T) {
		appt := newAppointment(hall.ID, 12, 12, 13)
		require.NoError(t, db.CreateAppointmentWithGuard(ctx, appt))
		require.NoError(t, db.UpdateAppointmentStatusWithVersion(ctx, appt.ID, appt.Version, models.StatusRejected))

		err := db.ApproveAppointmentWithGuard(ctx, appt.ID, appt.Version+1)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		appt := newAppointment(hall.ID, 13, 14, 15)
		require.NoError(t, db.CreateAppointmentWithGuard(ctx, appt))

		err := db.ApproveAppointmentWithGuard(ctx, appt.ID, appt.Version+5)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.ErrorIs(t, db.ApproveAppointmentWithGuard(ctx, 99999, 1), ErrNotFound)
	})
}

func TestConcurrentApproval(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	hall := createTestHall(t, db, "Arena", 1)
	createTestWindow(t, db, hall.ID, hhmm(9, 0), hhmm(18, 0))

	const numPending = 8
	ids := make([]int64, 0, numPending)
	for i := 0; i < numPending; i++ {
		appt := newAppointment(hall.ID, int64(100+i), 10, 11)
		require.NoError(t, db.CreateAppointmentWithGuard(ctx, appt))
		ids = append(ids, appt.ID)
	}

	var wg sync.WaitGroup
	results := make(chan error, numPending)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			results <- db.ApproveAppointmentWithGuard(ctx, id, 1)
		}(id)
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount, "only one overlapping approval may win")

	approved, err := db.ListAppointments(ctx, AppointmentFilter{HallID: hall.ID, Status: models.StatusApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestSetCheckedIn(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	hall := createTestHall(t, db, "Arena", 1)
	createTestWindow(t, db, hall.ID, hhmm(9, 0), hhmm(18, 0))

	appt := newAppointment(hall.ID, 10, 14, 15)
	require.NoError(t, db.CreateAppointmentWithGuard(ctx, appt))

	// Not approved yet.
	assert.ErrorIs(t, db.SetCheckedIn(ctx, appt.ID), ErrAlreadyCheckedIn)

	require.NoError(t, db.ApproveAppointmentWithGuard(ctx, appt.ID, appt.Version))
	require.NoError(t, db.SetCheckedIn(ctx, appt.ID))

	got, err := db.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, got.CheckedIn)

	// One-shot.
	assert.ErrorIs(t, db.SetCheckedIn(ctx, appt.ID), ErrAlreadyCheckedIn)
}

func TestListBusyIntersecting(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	hall := createTestHall(t, db, "Arena", 1)
	createTestWindow(t, db, hall.ID, hhmm(9, 0), hhmm(18, 0))

	approved := newAppointment(hall.ID, 10, 10, 11)
	require.NoError(t, db.CreateAppointmentWithGuard(ctx, approved))
	require.NoError(t, db.ApproveAppointmentWithGuard(ctx, approved.ID, approved.Version))

	pending := newAppointment(hall.ID, 11, 12, 13)
	require.NoError(t, db.CreateAppointmentWithGuard(ctx, pending))

	rejected := newAppointment(hall.ID, 12, 14, 15)
	require.NoError(t, db.CreateAppointmentWithGuard(ctx, rejected))
	require.NoError(t, db.UpdateAppointmentStatusWithVersion(ctx, rejected.ID, rejected.Version, models.StatusRejected))

	busy, err := db.ListBusyIntersecting(ctx, hall.ID, hhmm(9, 0), hhmm(18, 0))
	require.NoError(t, err)
	require.Len(t, busy, 2, "rejected appointments do not consume time")
	assert.True(t, busy[0].Start.Equal(hhmm(10, 0)))
	assert.True(t, busy[1].Start.Equal(hhmm(12, 0)))
}

func TestListAppointmentsFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	hall := createTestHall(t, db, "Arena", 1)
	createTestWindow(t, db, hall.ID, hhmm(9, 0), hhmm(18, 0))

	a := newAppointment(hall.ID, 10, 10, 11)
	require.NoError(t, db.CreateAppointmentWithGuard(ctx, a))
	b := newAppointment(hall.ID, 11, 12, 13)
	require.NoError(t, db.CreateAppointmentWithGuard(ctx, b))

	byUser, err := db.ListAppointments(ctx, AppointmentFilter{UserID: 10})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, a.ID, byUser[0].ID)

	byRange, err := db.ListAppointments(ctx, AppointmentFilter{HallID: hall.ID, From: hhmm(12, 0), To: hhmm(14, 0)})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, b.ID, byRange[0].ID)
}

func TestDeleteHallCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	hall := createTestHall(t, db, "Arena", 1)
	createTestWindow(t, db, hall.ID, hhmm(9, 0), hhmm(18, 0))
	appt := newAppointment(hall.ID, 10, 10, 11)
	require.NoError(t, db.CreateAppointmentWithGuard(ctx, appt))

	require.NoError(t, db.DeleteHall(ctx, hall.ID))

	_, err := db.GetHall(ctx, hall.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	avails, err := db.ListAvailabilities(ctx, hall.ID)
	require.NoError(t, err)
	assert.Empty(t, avails)

	appts, err := db.ListAppointments(ctx, AppointmentFilter{HallID: hall.ID})
	require.NoError(t, err)
	assert.Empty(t, appts)

	assert.ErrorIs(t, db.DeleteHall(ctx, hall.ID), ErrNotFound)
}
