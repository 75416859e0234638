package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SlotStore combines the slot cache with the rate limiter; both Redis and
// memory stores satisfy it.
type SlotStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, hallID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

// FailoverSlotStore serves from the primary store until it errors, then
// switches to the fallback and probes the primary again after a minute.
type FailoverSlotStore struct {
	primary   SlotStore
	fallback  SlotStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverSlotStore(primary, fallback SlotStore, logger *zerolog.Logger) *FailoverSlotStore {
	return &FailoverSlotStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSlotStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary slot store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverSlotStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !r.isDown.Load() {
		val, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			return val, ok, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		val, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return val, ok, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.Get(ctx, key)
}

func (r *FailoverSlotStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, key, value, ttl)
}

func (r *FailoverSlotStore) Invalidate(ctx context.Context, hallID int64) error {
	if !r.isDown.Load() {
		err := r.primary.Invalidate(ctx, hallID)
		if err == nil {
			// Fallback may hold stale entries written while primary was down.
			return r.fallback.Invalidate(ctx, hallID)
		}
		r.markDown(err)
	}

	return r.fallback.Invalidate(ctx, hallID)
}

func (r *FailoverSlotStore) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
