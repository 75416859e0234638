package service

import (
	"context"
	"time"

	"halltime/internal/database"
	"halltime/internal/interval"
	"halltime/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateHall(ctx context.Context, h *models.Hall) error {
	return m.Called(ctx, h).Error(0)
}
func (m *mockRepo) GetHall(ctx context.Context, id int64) (*models.Hall, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hall), args.Error(1)
}
func (m *mockRepo) UpdateHall(ctx context.Context, h *models.Hall) error {
	return m.Called(ctx, h).Error(0)
}
func (m *mockRepo) DeleteHall(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) ListHalls(ctx context.Context) ([]*models.Hall, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Hall), args.Error(1)
}
func (m *mockRepo) ListHallsByOwner(ctx context.Context, ownerID int64) ([]*models.Hall, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Hall), args.Error(1)
}
func (m *mockRepo) CreateAvailabilityWithGuard(ctx context.Context, a *models.Availability) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockRepo) GetAvailability(ctx context.Context, id int64) (*models.Availability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Availability), args.Error(1)
}
func (m *mockRepo) DeleteAvailability(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) ListAvailabilities(ctx context.Context, hallID int64) ([]*models.Availability, error) {
	args := m.Called(ctx, hallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Availability), args.Error(1)
}
func (m *mockRepo) ListAvailabilitiesIntersecting(ctx context.Context, hallID int64, s, e time.Time) ([]*models.Availability, error) {
	args := m.Called(ctx, hallID, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Availability), args.Error(1)
}
func (m *mockRepo) CreateAppointmentWithGuard(ctx context.Context, a *models.Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockRepo) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}
func (m *mockRepo) ApproveAppointmentWithGuard(ctx context.Context, id, v int64) error {
	return m.Called(ctx, id, v).Error(0)
}
func (m *mockRepo) UpdateAppointmentStatusWithVersion(ctx context.Context, id, v int64, s string) error {
	return m.Called(ctx, id, v, s).Error(0)
}
func (m *mockRepo) SetCheckedIn(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) ListAppointments(ctx context.Context, f database.AppointmentFilter) ([]*models.Appointment, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Appointment), args.Error(1)
}
func (m *mockRepo) ListBusyIntersecting(ctx context.Context, hallID int64, s, e time.Time) ([]interval.Span, error) {
	args := m.Called(ctx, hallID, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interval.Span), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueUpsert(ctx context.Context, a *models.Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockWorker) EnqueueStatus(ctx context.Context, id int64, s string) error {
	return m.Called(ctx, id, s).Error(0)
}

// fakeSlotCache is a trivial in-memory SlotCache; a mock is overkill here.
type fakeSlotCache struct {
	data        map[string][]byte
	invalidated []int64
}

func newFakeSlotCache() *fakeSlotCache {
	return &fakeSlotCache{data: make(map[string][]byte)}
}

func (c *fakeSlotCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := c.data[key]
	return raw, ok, nil
}

func (c *fakeSlotCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *fakeSlotCache) Invalidate(_ context.Context, hallID int64) error {
	c.invalidated = append(c.invalidated, hallID)
	c.data = make(map[string][]byte)
	return nil
}

type fakeLimiter struct {
	allowed bool
	calls   int
}

func (l *fakeLimiter) CheckRateLimit(_ context.Context, _ int64, _ int, _ time.Duration) (bool, error) {
	l.calls++
	return l.allowed, nil
}
