package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"halltime/internal/database"
	"halltime/internal/domain"
	"halltime/internal/events"
	"halltime/internal/interval"
	"halltime/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// BookingService is the conflict checker: it validates booking requests
// against availability windows and approved appointments, and drives the
// appointment state machine. The atomicity of every guard+write pair lives in
// the repository; this layer owns permissions, timing rules and side effects.
type BookingService struct {
	repo       domain.Repository
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	slotCache  domain.SlotCache
	limiter    domain.RateLimiter
	clock      domain.Clock
	slotLength time.Duration
	cacheTTL   time.Duration
	logger     *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	slotCache domain.SlotCache,
	limiter domain.RateLimiter,
	clock domain.Clock,
	slotLength time.Duration,
	logger *zerolog.Logger,
) *BookingService {
	if slotLength <= 0 {
		slotLength = models.DefaultSlotLength
	}
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &BookingService{
		repo:       repo,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		slotCache:  slotCache,
		limiter:    limiter,
		clock:      clock,
		slotLength: slotLength,
		cacheTTL:   models.SlotCacheTTL * time.Second,
		logger:     logger,
	}
}

// FreeSlotsResult is consumed verbatim by the presentation layer.
type FreeSlotsResult struct {
	FreeIntervals []interval.Span `json:"free_intervals"`
	Slots         []interval.Slot `json:"slots"`
}

// FreeSlots computes the bookable time of a hall within [windowStart,
// windowEnd): availability windows minus time consumed by approved and
// pending appointments, sliced into slotLength chunks.
func (s *BookingService) FreeSlots(ctx context.Context, hallID int64, windowStart, windowEnd time.Time, slotLength time.Duration) (*FreeSlotsResult, error) {
	if !windowStart.Before(windowEnd) {
		return nil, database.ErrInvalidRange
	}
	if slotLength <= 0 {
		slotLength = s.slotLength
	}

	if _, err := s.repo.GetHall(ctx, hallID); err != nil {
		return nil, err
	}

	cacheKey := freeSlotsCacheKey(hallID, windowStart, windowEnd, slotLength)
	if s.slotCache != nil {
		if raw, ok, err := s.slotCache.Get(ctx, cacheKey); err == nil && ok {
			var cached FreeSlotsResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	avails, err := s.repo.ListAvailabilitiesIntersecting(ctx, hallID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	busy, err := s.repo.ListBusyIntersecting(ctx, hallID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	base := make([]interval.Span, 0, len(avails))
	for _, a := range avails {
		base = append(base, interval.Span{Start: a.Start, End: a.End})
	}

	free := interval.Subtract(base, busy)
	result := &FreeSlotsResult{
		FreeIntervals: free,
		Slots:         interval.Quantize(free, slotLength, s.clock.Now()),
	}

	if s.slotCache != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := s.slotCache.Set(ctx, cacheKey, raw, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Int64("hall_id", hallID).Msg("slot cache set failed")
			}
		}
	}

	return result, nil
}

// RequestBooking files a pending appointment for the actor. Overlapping
// pending requests for the same slot may coexist; the first approval wins.
func (s *BookingService) RequestBooking(ctx context.Context, actor models.Actor, hallID int64, start, end time.Time) (*models.Appointment, error) {
	if !start.Before(end) {
		return nil, database.ErrInvalidRange
	}

	if s.limiter != nil {
		allowed, err := s.limiter.CheckRateLimit(ctx, actor.UserID, models.RateLimitRequests, models.RateLimitWindow*time.Second)
		if err != nil {
			s.logger.Warn().Err(err).Int64("user_id", actor.UserID).Msg("rate limit check failed, allowing request")
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	hall, err := s.repo.GetHall(ctx, hallID)
	if err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		Reference: uuid.NewString(),
		HallID:    hallID,
		UserID:    actor.UserID,
		Start:     start,
		End:       end,
	}
	if err := s.repo.CreateAppointmentWithGuard(ctx, appt); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventAppointmentRequested, hall, appt, "user", actor.UserID)
	s.enqueueUpsert(ctx, appt)
	s.invalidateSlots(ctx, hallID)

	return appt, nil
}

// Decide applies the owner's approve or reject decision. Approval re-runs the
// overlap check atomically; on conflict the appointment stays pending.
func (s *BookingService) Decide(ctx context.Context, actor models.Actor, appointmentID int64, action string) error {
	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	hall, err := s.repo.GetHall(ctx, appt.HallID)
	if err != nil {
		return err
	}
	if !hall.OwnedBy(actor.UserID) {
		return ErrPermissionDenied
	}

	switch action {
	case DecisionApprove:
		if err := s.repo.ApproveAppointmentWithGuard(ctx, appt.ID, appt.Version); err != nil {
			return err
		}
		appt.Status = models.StatusApproved
		s.publishEvent(events.EventAppointmentApproved, hall, appt, "owner", actor.UserID)
	case DecisionReject:
		if appt.Status != models.StatusPending {
			return database.ErrInvalidTransition
		}
		if err := s.repo.UpdateAppointmentStatusWithVersion(ctx, appt.ID, appt.Version, models.StatusRejected); err != nil {
			return err
		}
		appt.Status = models.StatusRejected
		s.publishEvent(events.EventAppointmentRejected, hall, appt, "owner", actor.UserID)
	default:
		return fmt.Errorf("unknown decision action: %s", action)
	}

	s.enqueueStatus(ctx, appt.ID, appt.Status)
	s.invalidateSlots(ctx, appt.HallID)
	return nil
}

// Cancel moves a pending or approved appointment to cancelled. Allowed for
// the requesting user and for the hall's owner. An appointment that was
// already checked in cannot be cancelled.
func (s *BookingService) Cancel(ctx context.Context, actor models.Actor, appointmentID int64) error {
	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	hall, err := s.repo.GetHall(ctx, appt.HallID)
	if err != nil {
		return err
	}
	if appt.UserID != actor.UserID && !hall.OwnedBy(actor.UserID) {
		return ErrPermissionDenied
	}

	if appt.IsTerminal() {
		return database.ErrInvalidTransition
	}
	if appt.CheckedIn {
		return database.ErrAlreadyCheckedIn
	}

	if err := s.repo.UpdateAppointmentStatusWithVersion(ctx, appt.ID, appt.Version, models.StatusCancelled); err != nil {
		return err
	}
	appt.Status = models.StatusCancelled

	s.publishEvent(events.EventAppointmentCancelled, hall, appt, actorKind(actor, hall), actor.UserID)
	s.enqueueStatus(ctx, appt.ID, appt.Status)
	s.invalidateSlots(ctx, appt.HallID)
	return nil
}

// CheckIn flips the one-shot checked_in flag. Only approved appointments, only
// within [start − lead, end], only once.
func (s *BookingService) CheckIn(ctx context.Context, actor models.Actor, appointmentID int64) error {
	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	hall, err := s.repo.GetHall(ctx, appt.HallID)
	if err != nil {
		return err
	}
	if appt.UserID != actor.UserID && !hall.OwnedBy(actor.UserID) {
		return ErrPermissionDenied
	}

	if appt.Status != models.StatusApproved {
		return database.ErrInvalidTransition
	}
	if appt.CheckedIn {
		return database.ErrAlreadyCheckedIn
	}

	from, until := appt.CheckInWindow()
	now := s.clock.Now()
	if now.Before(from) || now.After(until) {
		return &CheckInWindowError{From: from, Until: until}
	}

	if err := s.repo.SetCheckedIn(ctx, appt.ID); err != nil {
		return err
	}

	s.publishEvent(events.EventAppointmentCheckedIn, hall, appt, actorKind(actor, hall), actor.UserID)
	return nil
}

// GetAppointment fetches one appointment, visible to its user and the hall
// owner.
func (s *BookingService) GetAppointment(ctx context.Context, actor models.Actor, appointmentID int64) (*models.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	hall, err := s.repo.GetHall(ctx, appt.HallID)
	if err != nil {
		return nil, err
	}
	if appt.UserID != actor.UserID && !hall.OwnedBy(actor.UserID) {
		return nil, ErrPermissionDenied
	}
	return appt, nil
}

// ListAppointments is the public listing, optionally narrowed by hall and day.
func (s *BookingService) ListAppointments(ctx context.Context, hallID int64, day time.Time) ([]*models.Appointment, error) {
	filter := database.AppointmentFilter{HallID: hallID}
	if !day.IsZero() {
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		filter.From = dayStart
		filter.To = dayStart.AddDate(0, 0, 1)
	}
	return s.repo.ListAppointments(ctx, filter)
}

// ListPending returns the pending requests of one hall, owner only.
func (s *BookingService) ListPending(ctx context.Context, actor models.Actor, hallID int64) ([]*models.Appointment, error) {
	hall, err := s.repo.GetHall(ctx, hallID)
	if err != nil {
		return nil, err
	}
	if !hall.OwnedBy(actor.UserID) {
		return nil, ErrPermissionDenied
	}
	return s.repo.ListAppointments(ctx, database.AppointmentFilter{HallID: hallID, Status: models.StatusPending})
}

// ListMine returns the actor's own appointments.
func (s *BookingService) ListMine(ctx context.Context, actor models.Actor) ([]*models.Appointment, error) {
	return s.repo.ListAppointments(ctx, database.AppointmentFilter{UserID: actor.UserID})
}

func (s *BookingService) publishEvent(eventType string, hall *models.Hall, appt *models.Appointment, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.AppointmentEventPayload{
		AppointmentID: appt.ID,
		Reference:     appt.Reference,
		HallID:        hall.ID,
		HallName:      hall.Name,
		UserID:        appt.UserID,
		Status:        appt.Status,
		Start:         appt.Start,
		End:           appt.End,
		ChangedBy:     changedBy,
		ChangedByID:   changedByID,
	}
	if hall.OwnerID != nil {
		payload.OwnerID = *hall.OwnerID
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("appointment_id", appt.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueUpsert(ctx context.Context, appt *models.Appointment) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueUpsert(ctx, appt); err != nil {
		s.logger.Error().Err(err).Int64("appointment_id", appt.ID).Msg("schedule sync enqueue error")
	}
}

func (s *BookingService) enqueueStatus(ctx context.Context, appointmentID int64, status string) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueStatus(ctx, appointmentID, status); err != nil {
		s.logger.Error().Err(err).Int64("appointment_id", appointmentID).Msg("schedule sync enqueue error")
	}
}

func (s *BookingService) invalidateSlots(ctx context.Context, hallID int64) {
	if s.slotCache == nil {
		return
	}
	if err := s.slotCache.Invalidate(ctx, hallID); err != nil {
		s.logger.Warn().Err(err).Int64("hall_id", hallID).Msg("slot cache invalidate failed")
	}
}

func actorKind(actor models.Actor, hall *models.Hall) string {
	if hall.OwnedBy(actor.UserID) {
		return "owner"
	}
	return "user"
}

func freeSlotsCacheKey(hallID int64, start, end time.Time, slotLength time.Duration) string {
	return fmt.Sprintf("free_slots:%d:%d:%d:%d", hallID, start.Unix(), end.Unix(), int64(slotLength.Seconds()))
}
