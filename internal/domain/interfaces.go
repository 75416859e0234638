package domain

import (
	"context"
	"time"

	"halltime/internal/database"
	"halltime/internal/interval"
	"halltime/internal/models"
)

// Repository is the persistence contract the services depend on. The guarded
// methods run their check-then-write sequence inside one transaction.
type Repository interface {
	CreateHall(ctx context.Context, hall *models.Hall) error
	GetHall(ctx context.Context, id int64) (*models.Hall, error)
	UpdateHall(ctx context.Context, hall *models.Hall) error
	DeleteHall(ctx context.Context, id int64) error
	ListHalls(ctx context.Context) ([]*models.Hall, error)
	ListHallsByOwner(ctx context.Context, ownerID int64) ([]*models.Hall, error)

	CreateAvailabilityWithGuard(ctx context.Context, avail *models.Availability) error
	GetAvailability(ctx context.Context, id int64) (*models.Availability, error)
	DeleteAvailability(ctx context.Context, id int64) error
	ListAvailabilities(ctx context.Context, hallID int64) ([]*models.Availability, error)
	ListAvailabilitiesIntersecting(ctx context.Context, hallID int64, start, end time.Time) ([]*models.Availability, error)

	CreateAppointmentWithGuard(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	ApproveAppointmentWithGuard(ctx context.Context, id, fromVersion int64) error
	UpdateAppointmentStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	SetCheckedIn(ctx context.Context, id int64) error
	ListAppointments(ctx context.Context, filter database.AppointmentFilter) ([]*models.Appointment, error)
	ListBusyIntersecting(ctx context.Context, hallID int64, start, end time.Time) ([]interval.Span, error)
}

// Clock supplies the current time so guards and slot flags are testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a func to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncWorker accepts schedule-mirror tasks triggered by state transitions.
type SyncWorker interface {
	EnqueueUpsert(ctx context.Context, appt *models.Appointment) error
	EnqueueStatus(ctx context.Context, appointmentID int64, status string) error
}

// SlotCache caches computed free-slot responses per hall and window.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, hallID int64) error
}

// RateLimiter bounds how often a single user may file booking requests.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}
