package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisCounterStore implements CounterStore with day-keyed Redis counters.
type RedisCounterStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCounterStore creates a Redis-backed counter store. Keys expire
// ttl after their last increment.
func NewRedisCounterStore(client *redis.Client, ttl time.Duration) *RedisCounterStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisCounterStore{client: client, ttl: ttl}
}

func counterKey(t models.EventType, day time.Time) string {
	return fmt.Sprintf("stats:events:%s:%s", t, dayKey(day))
}

// Incr records one event of type t on day.
func (c *RedisCounterStore) Incr(ctx context.Context, t models.EventType, day time.Time) error {
	key := counterKey(t, day)

	pipe := c.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	return nil
}

// Get returns the tally for type t on day.
func (c *RedisCounterStore) Get(ctx context.Context, t models.EventType, day time.Time) (int64, error) {
	n, err := c.client.Get(ctx, counterKey(t, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return n, nil
}

// InMemoryCounterStore is the process-local CounterStore.
type InMemoryCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewInMemoryCounterStore creates an empty counter store.
func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{counts: make(map[string]int64)}
}

func (c *InMemoryCounterStore) Incr(ctx context.Context, t models.EventType, day time.Time) error {
	c.mu.Lock()
	c.counts[counterKey(t, day)]++
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCounterStore) Get(ctx context.Context, t models.EventType, day time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[counterKey(t, day)], nil
}
