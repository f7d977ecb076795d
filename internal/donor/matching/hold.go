package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultHoldPrefix = "hold:donor:"

// HoldStore grants a requester a short exclusive hold on a donor so two
// emergencies do not contact the same person simultaneously. Holds are
// advisory and expire on their own; they never affect registry state.
type HoldStore interface {
	TryHold(ctx context.Context, donorID uuid.UUID, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, donorID uuid.UUID) error
}

// RedisHoldStore implements HoldStore with SET NX EX so holds survive
// process restarts and expire without a janitor.
type RedisHoldStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisHoldStore constructs the store.
func NewRedisHoldStore(client redis.Cmdable, prefix string) *RedisHoldStore {
	if prefix == "" {
		prefix = defaultHoldPrefix
	}
	return &RedisHoldStore{client: client, keyPrefix: prefix}
}

// TryHold attempts to acquire the hold.
func (r *RedisHoldStore) TryHold(ctx context.Context, donorID uuid.UUID, holder string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	key := r.keyPrefix + donorID.String()
	ok, err := r.client.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Release removes the hold key.
func (r *RedisHoldStore) Release(ctx context.Context, donorID uuid.UUID) error {
	if err := r.client.Del(ctx, r.keyPrefix+donorID.String()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MemoryHoldStore is the single-process fallback.
type MemoryHoldStore struct {
	mu    sync.Mutex
	holds map[uuid.UUID]memoryHold
}

type memoryHold struct {
	holder  string
	expires time.Time
}

// NewMemoryHoldStore constructs an empty store.
func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{holds: make(map[uuid.UUID]memoryHold)}
}

// TryHold acquires the hold unless an unexpired one exists.
func (m *MemoryHoldStore) TryHold(_ context.Context, donorID uuid.UUID, holder string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if h, ok := m.holds[donorID]; ok && h.expires.After(now) {
		return false, nil
	}
	m.holds[donorID] = memoryHold{holder: holder, expires: now.Add(ttl)}
	return true, nil
}

// Release drops the hold.
func (m *MemoryHoldStore) Release(_ context.Context, donorID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holds, donorID)
	return nil
}
