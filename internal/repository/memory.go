package repository

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemorySlotStore is the in-process fallback used when Redis is unreachable.
type MemorySlotStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	rateLimits sync.Map
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{entries: make(map[string]memoryEntry)}
}

func (r *MemorySlotStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(r.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (r *MemorySlotStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (r *MemorySlotStore) Invalidate(_ context.Context, hallID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := slotKeyPrefix(hallID)
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			delete(r.entries, key)
		}
	}
	return nil
}

func slotKeyPrefix(hallID int64) string {
	return "free_slots:" + strconv.FormatInt(hallID, 10) + ":"
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySlotStore) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(userID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(userID, entry)
	return entry.count <= limit, nil
}
