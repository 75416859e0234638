package service

import (
	"context"
	"strings"

	"halltime/internal/domain"
	"halltime/internal/models"

	"github.com/rs/zerolog"
)

// HallService owns the hall catalogue. Creation requires the owner role;
// mutation requires ownership of the specific hall.
type HallService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewHallService(repo domain.Repository, logger *zerolog.Logger) *HallService {
	return &HallService{repo: repo, logger: logger}
}

func (s *HallService) Create(ctx context.Context, actor models.Actor, hall *models.Hall) error {
	if actor.Role != models.RoleOwner {
		return ErrPermissionDenied
	}
	if strings.TrimSpace(hall.Name) == "" {
		return ErrEmptyHallName
	}

	ownerID := actor.UserID
	hall.OwnerID = &ownerID
	if err := s.repo.CreateHall(ctx, hall); err != nil {
		return err
	}

	s.logger.Info().Int64("hall_id", hall.ID).Str("name", hall.Name).Msg("hall created")
	return nil
}

func (s *HallService) Get(ctx context.Context, id int64) (*models.Hall, error) {
	return s.repo.GetHall(ctx, id)
}

func (s *HallService) Update(ctx context.Context, actor models.Actor, hall *models.Hall) error {
	existing, err := s.repo.GetHall(ctx, hall.ID)
	if err != nil {
		return err
	}
	if !existing.OwnedBy(actor.UserID) {
		return ErrPermissionDenied
	}
	if strings.TrimSpace(hall.Name) == "" {
		return ErrEmptyHallName
	}

	// Ownership does not change through updates.
	hall.OwnerID = existing.OwnerID
	return s.repo.UpdateHall(ctx, hall)
}

// Delete removes the hall together with its windows and appointments.
func (s *HallService) Delete(ctx context.Context, actor models.Actor, id int64) error {
	existing, err := s.repo.GetHall(ctx, id)
	if err != nil {
		return err
	}
	if !existing.OwnedBy(actor.UserID) {
		return ErrPermissionDenied
	}

	if err := s.repo.DeleteHall(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("hall_id", id).Msg("hall deleted")
	return nil
}

func (s *HallService) List(ctx context.Context) ([]*models.Hall, error) {
	return s.repo.ListHalls(ctx)
}

// Mine lists the halls owned by the actor.
func (s *HallService) Mine(ctx context.Context, actor models.Actor) ([]*models.Hall, error) {
	return s.repo.ListHallsByOwner(ctx, actor.UserID)
}
