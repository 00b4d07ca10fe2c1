package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/radiusdt/printworks-analytics/internal/models"
)

// InMemoryEventStore keeps events in process memory. Used for development
// and tests.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []*models.Event
}

// NewInMemoryEventStore creates a new in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

func (s *InMemoryEventStore) Insert(ctx context.Context, e *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *e
	stored.ID = uuid.NewString()

	s.mu.Lock()
	s.events = append(s.events, &stored)
	s.mu.Unlock()

	e.ID = stored.ID
	return nil
}

func (s *InMemoryEventStore) Query(ctx context.Context, f models.EventFilter) ([]*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]*models.Event, 0)
	for _, e := range s.events {
		if f.Matches(e) {
			cp := *e
			result = append(result, &cp)
		}
	}
	s.mu.RUnlock()

	switch f.Order {
	case models.OrderAscending:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Timestamp.Before(result[j].Timestamp)
		})
	case models.OrderDescending:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Timestamp.After(result[j].Timestamp)
		})
	}

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *InMemoryEventStore) Count(ctx context.Context, f models.EventFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if f.Matches(e) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored events.
func (s *InMemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
