package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// WatchlistStore is the set of subject keys the watcher alerts on.
// Membership is maintained by explicit add/remove operations.
type WatchlistStore interface {
	Add(ctx context.Context, key string) error
	Remove(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context) (int, error)
}

// MemoryWatchlist is the default in-process store.
type MemoryWatchlist struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryWatchlist creates an empty in-memory watchlist.
func NewMemoryWatchlist() *MemoryWatchlist {
	return &MemoryWatchlist{keys: make(map[string]struct{})}
}

func (m *MemoryWatchlist) Add(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = struct{}{}
	return nil
}

func (m *MemoryWatchlist) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *MemoryWatchlist) Contains(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *MemoryWatchlist) Size(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys), nil
}

const redisWatchlistKey = "screening:watchlist"

// RedisWatchlist persists the watchlist in a Redis set so membership
// survives restarts and is shared across instances.
type RedisWatchlist struct {
	client *redis.Client
}

// NewRedisWatchlist creates a store over an existing Redis client.
func NewRedisWatchlist(client *redis.Client) *RedisWatchlist {
	return &RedisWatchlist{client: client}
}

func (r *RedisWatchlist) Add(ctx context.Context, key string) error {
	if err := r.client.SAdd(ctx, redisWatchlistKey, key).Err(); err != nil {
		return fmt.Errorf("failed to add watchlist key: %w", err)
	}
	return nil
}

func (r *RedisWatchlist) Remove(ctx context.Context, key string) error {
	if err := r.client.SRem(ctx, redisWatchlistKey, key).Err(); err != nil {
		return fmt.Errorf("failed to remove watchlist key: %w", err)
	}
	return nil
}

func (r *RedisWatchlist) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, redisWatchlistKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist membership: %w", err)
	}
	return ok, nil
}

func (r *RedisWatchlist) Size(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, redisWatchlistKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read watchlist size: %w", err)
	}
	return int(n), nil
}
