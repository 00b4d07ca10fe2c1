package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// =============================================
// In-memory sessions
// =============================================

// InMemorySessionStore keeps sessions in a map with a sliding TTL.
type InMemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]time.Time // id -> expiry
}

// NewInMemorySessionStore creates a session store. A zero ttl never expires.
func NewInMemorySessionStore(ttl time.Duration) *InMemorySessionStore {
	return &InMemorySessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]time.Time),
	}
}

func (s *InMemorySessionStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = s.expiry()
	s.mu.Unlock()

	return id, nil
}

func (s *InMemorySessionStore) Touch(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	if !exp.IsZero() && s.now().After(exp) {
		delete(s.sessions, id)
		return false, nil
	}
	s.sessions[id] = s.expiry()
	return true, nil
}

func (s *InMemorySessionStore) Rotate(ctx context.Context, old string) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	delete(s.sessions, old)
	s.sessions[id] = s.expiry()
	s.mu.Unlock()

	return id, nil
}

func (s *InMemorySessionStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

// =============================================
// Redis sessions
// =============================================

// RedisSessionStore keeps one key per session with a sliding expiry.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.client.Set(ctx, sessionKeyPrefix+id, time.Now().UTC().Unix(), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, id string) (bool, error) {
	if s.ttl <= 0 {
		n, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return false, fmt.Errorf("failed to check session: %w", err)
		}
		return n == 1, nil
	}

	ok, err := s.client.Expire(ctx, sessionKeyPrefix+id, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}
	return ok, nil
}

func (s *RedisSessionStore) Rotate(ctx context.Context, old string) (string, error) {
	id := uuid.NewString()

	pipe := s.client.TxPipeline()
	if old != "" {
		pipe.Del(ctx, sessionKeyPrefix+old)
	}
	pipe.Set(ctx, sessionKeyPrefix+id, time.Now().UTC().Unix(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to rotate session: %w", err)
	}
	return id, nil
}
