package service

import (
	"context"
	"errors"
	"time"

	"halltime/internal/database"
	"halltime/internal/domain"
	"halltime/internal/models"

	"github.com/rs/zerolog"
)

// AvailabilityService manages the bookable windows of halls. All writes are
// restricted to the hall's owner; the no-overlap invariant is enforced by the
// repository guard.
type AvailabilityService struct {
	repo     domain.Repository
	clock    domain.Clock
	location *time.Location
	logger   *zerolog.Logger
}

func NewAvailabilityService(repo domain.Repository, clock domain.Clock, timezone string, logger *zerolog.Logger) (*AvailabilityService, error) {
	if timezone == "" {
		timezone = models.DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &AvailabilityService{repo: repo, clock: clock, location: loc, logger: logger}, nil
}

// Create adds a single availability window for a hall.
func (s *AvailabilityService) Create(ctx context.Context, actor models.Actor, hallID int64, start, end time.Time) (*models.Availability, error) {
	if !start.Before(end) {
		return nil, database.ErrInvalidRange
	}

	hall, err := s.repo.GetHall(ctx, hallID)
	if err != nil {
		return nil, err
	}
	if !hall.OwnedBy(actor.UserID) {
		return nil, ErrPermissionDenied
	}

	avail := &models.Availability{
		HallID: hallID,
		Start:  start.In(s.location),
		End:    end.In(s.location),
	}
	if err := s.repo.CreateAvailabilityWithGuard(ctx, avail); err != nil {
		return nil, err
	}
	return avail, nil
}

// BulkCreateParams describes a recurring daily window over a date range.
// Weekdays narrows the set of days; empty means every day.
type BulkCreateParams struct {
	HallID    int64
	FromDate  time.Time // date part only, interpreted in the service timezone
	ToDate    time.Time // inclusive
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Weekdays  []time.Weekday
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// BulkCreate expands a recurring window into per-date availabilities. Dates
// that fail the overlap guard are skipped and reported, not fatal; the whole
// batch is rejected only for structurally invalid input.
func (s *AvailabilityService) BulkCreate(ctx context.Context, actor models.Actor, params BulkCreateParams) (*models.BulkCreateResult, error) {
	hall, err := s.repo.GetHall(ctx, params.HallID)
	if err != nil {
		return nil, err
	}
	if !hall.OwnedBy(actor.UserID) {
		return nil, ErrPermissionDenied
	}

	from := time.Date(params.FromDate.Year(), params.FromDate.Month(), params.FromDate.Day(), 0, 0, 0, 0, s.location)
	to := time.Date(params.ToDate.Year(), params.ToDate.Month(), params.ToDate.Day(), 0, 0, 0, 0, s.location)
	if to.Before(from) {
		return nil, database.ErrInvalidRange
	}
	if int(to.Sub(from).Hours()/24) > models.MaxBulkRangeDays {
		return nil, database.ErrRangeTooLong
	}

	today := s.clock.Now().In(s.location)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.location)
	if from.Before(today) {
		return nil, database.ErrPastDate
	}

	startMinutes := params.StartTime.Hour*60 + params.StartTime.Minute
	endMinutes := params.EndTime.Hour*60 + params.EndTime.Minute
	if endMinutes <= startMinutes {
		return nil, database.ErrInvalidRange
	}

	wanted := make(map[time.Weekday]bool, len(params.Weekdays))
	for _, wd := range params.Weekdays {
		wanted[wd] = true
	}

	result := &models.BulkCreateResult{}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if len(wanted) > 0 && !wanted[day.Weekday()] {
			continue
		}

		avail := &models.Availability{
			HallID: params.HallID,
			Start:  day.Add(time.Duration(startMinutes) * time.Minute),
			End:    day.Add(time.Duration(endMinutes) * time.Minute),
		}
		if err := s.repo.CreateAvailabilityWithGuard(ctx, avail); err != nil {
			if errors.Is(err, database.ErrAvailabilityOverlap) {
				result.Skipped = append(result.Skipped, models.SkippedDate{
					Date:   day.Format("2006-01-02"),
					Reason: "overlaps an existing window",
				})
				continue
			}
			return nil, err
		}
		result.Created = append(result.Created, *avail)
	}

	s.logger.Info().
		Int64("hall_id", params.HallID).
		Int("created", len(result.Created)).
		Int("skipped", len(result.Skipped)).
		Msg("bulk availability created")

	return result, nil
}

// Delete removes a window, owner only. Existing appointments are untouched.
func (s *AvailabilityService) Delete(ctx context.Context, actor models.Actor, availabilityID int64) error {
	avail, err := s.repo.GetAvailability(ctx, availabilityID)
	if err != nil {
		return err
	}
	hall, err := s.repo.GetHall(ctx, avail.HallID)
	if err != nil {
		return err
	}
	if !hall.OwnedBy(actor.UserID) {
		return ErrPermissionDenied
	}
	return s.repo.DeleteAvailability(ctx, availabilityID)
}

// List returns the windows of one hall, or of all halls when hallID is zero.
func (s *AvailabilityService) List(ctx context.Context, hallID int64) ([]*models.Availability, error) {
	if hallID != 0 {
		if _, err := s.repo.GetHall(ctx, hallID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListAvailabilities(ctx, hallID)
}
