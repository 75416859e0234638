package service

import (
	"context"
	"io"
	"testing"

	"halltime/internal/database"
	"halltime/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestHallService(repo *mockRepo) *HallService {
	logger := zerolog.New(io.Discard)
	return NewHallService(repo, &logger)
}

func TestHallServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerRole", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		repo.On("CreateHall", ctx, mock.AnythingOfType("*models.Hall")).Return(nil).Once()

		hall := &models.Hall{Name: "Arena", Address: "Main St 1"}
		err := svc.Create(ctx, models.Actor{UserID: 100, Role: models.RoleOwner}, hall)
		assert.NoError(t, err)
		assert.NotNil(t, hall.OwnerID)
		assert.Equal(t, int64(100), *hall.OwnerID)
		repo.AssertExpectations(t)
	})

	t.Run("PlayerDenied", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		hall := &models.Hall{Name: "Arena"}
		err := svc.Create(ctx, models.Actor{UserID: 7, Role: models.RolePlayer}, hall)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("EmptyName", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		hall := &models.Hall{Name: "  "}
		err := svc.Create(ctx, models.Actor{UserID: 100, Role: models.RoleOwner}, hall)
		assert.Error(t, err)
	})
}

func TestHallServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerUpdates", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		repo.On("GetHall", ctx, int64(1)).Return(ownerHall(1, 100), nil).Once()
		repo.On("UpdateHall", ctx, mock.AnythingOfType("*models.Hall")).Return(nil).Once()

		hall := &models.Hall{ID: 1, Name: "Renamed"}
		err := svc.Update(ctx, models.Actor{UserID: 100, Role: models.RoleOwner}, hall)
		assert.NoError(t, err)
		assert.Equal(t, int64(100), *hall.OwnerID)
		repo.AssertExpectations(t)
	})

	t.Run("OwnershipCannotChange", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		repo.On("GetHall", ctx, int64(1)).Return(ownerHall(1, 100), nil).Once()
		repo.On("UpdateHall", ctx, mock.Anything).Return(nil).Once()

		other := int64(999)
		hall := &models.Hall{ID: 1, Name: "Renamed", OwnerID: &other}
		err := svc.Update(ctx, models.Actor{UserID: 100, Role: models.RoleOwner}, hall)
		assert.NoError(t, err)
		assert.Equal(t, int64(100), *hall.OwnerID)
	})

	t.Run("StrangerDenied", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		repo.On("GetHall", ctx, int64(1)).Return(ownerHall(1, 100), nil).Once()

		hall := &models.Hall{ID: 1, Name: "Renamed"}
		err := svc.Update(ctx, models.Actor{UserID: 2, Role: models.RoleOwner}, hall)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestHallServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerDeletes", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		repo.On("GetHall", ctx, int64(1)).Return(ownerHall(1, 100), nil).Once()
		repo.On("DeleteHall", ctx, int64(1)).Return(nil).Once()

		err := svc.Delete(ctx, models.Actor{UserID: 100, Role: models.RoleOwner}, 1)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		repo.On("GetHall", ctx, int64(9)).Return(nil, database.ErrNotFound).Once()

		err := svc.Delete(ctx, models.Actor{UserID: 100, Role: models.RoleOwner}, 9)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("OrphanedHallUnmanageable", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestHallService(repo)

		// Owner account removed: nobody may mutate the hall anymore.
		repo.On("GetHall", ctx, int64(1)).Return(&models.Hall{ID: 1, Name: "Orphan"}, nil).Once()

		err := svc.Delete(ctx, models.Actor{UserID: 100, Role: models.RoleOwner}, 1)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestHallServiceListings(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	svc := newTestHallService(repo)

	halls := []*models.Hall{ownerHall(1, 100), ownerHall(2, 100)}
	repo.On("ListHalls", ctx).Return(halls, nil).Once()
	repo.On("ListHallsByOwner", ctx, int64(100)).Return(halls, nil).Once()

	all, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.Mine(ctx, models.Actor{UserID: 100, Role: models.RoleOwner})
	assert.NoError(t, err)
	assert.Len(t, mine, 2)
	repo.AssertExpectations(t)
}
