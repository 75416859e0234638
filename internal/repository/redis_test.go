package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSlotStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	store := NewRedisSlotStore(client)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := store.Set(ctx, "free_slots:1:100:200:3600", []byte(`{"slots":[]}`), time.Minute)
		require.NoError(t, err)

		val, ok, err := store.Get(ctx, "free_slots:1:100:200:3600")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte(`{"slots":[]}`), val)
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "free_slots:1:missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		err := store.Set(ctx, "free_slots:2:100:200:3600", []byte("x"), 30*time.Second)
		require.NoError(t, err)

		s.FastForward(31 * time.Second)

		_, ok, err := store.Get(ctx, "free_slots:2:100:200:3600")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InvalidateDropsOnlyHall", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "free_slots:3:100:200:3600", []byte("a"), time.Minute))
		require.NoError(t, store.Set(ctx, "free_slots:3:200:300:3600", []byte("b"), time.Minute))
		require.NoError(t, store.Set(ctx, "free_slots:4:100:200:3600", []byte("c"), time.Minute))

		err := store.Invalidate(ctx, 3)
		require.NoError(t, err)

		_, ok, _ := store.Get(ctx, "free_slots:3:100:200:3600")
		assert.False(t, ok)
		_, ok, _ = store.Get(ctx, "free_slots:3:200:300:3600")
		assert.False(t, ok)
		_, ok, _ = store.Get(ctx, "free_slots:4:100:200:3600")
		assert.True(t, ok)
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := store.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = store.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		// Third request exceeds the limit
		allowed, err = store.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = store.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		store := NewRedisSlotStore(nil)
		_, _, err := store.Get(ctx, "free_slots:1:x")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		err := Ping(ctx, client)
		assert.NoError(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		err := Close(client)
		assert.NoError(t, err)
	})
}
