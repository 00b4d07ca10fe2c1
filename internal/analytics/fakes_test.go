package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// fakeEventStore records calls and fails selected operations.
type fakeEventStore struct {
	mu         sync.Mutex
	inserted   []*models.Event
	filters    []models.EventFilter
	events     []*models.Event
	counts     map[models.EventType]int64
	insertErr  error
	queryErr   error
	countErr   map[models.EventType]error
	panicOnAdd bool
}

func (f *fakeEventStore) Insert(ctx context.Context, e *models.Event) error {
	if f.panicOnAdd {
		panic("driver exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	e.ID = "evt-" + string(rune('a'+len(f.inserted)))
	f.inserted = append(f.inserted, e)
	return nil
}

func (f *fakeEventStore) Query(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []*models.Event
	for _, e := range f.events {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeEventStore) Count(ctx context.Context, filter models.EventFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if err := f.countErr[filter.Type]; err != nil {
		return 0, err
	}
	return f.counts[filter.Type], nil
}

type fakeGoalStore struct {
	goals []*models.Goal
	err   error
}

func (f *fakeGoalStore) ListByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.goals, nil
}

type fakeSessionStore struct {
	next    string
	err     error
	rotated []string
}

func (f *fakeSessionStore) Create(ctx context.Context) (string, error) { return f.next, f.err }

func (f *fakeSessionStore) Touch(ctx context.Context, id string) (bool, error) { return true, nil }

func (f *fakeSessionStore) Rotate(ctx context.Context, old string) (string, error) {
	f.rotated = append(f.rotated, old)
	if f.err != nil {
		return "", f.err
	}
	return f.next, nil
}

// blockingSessionStore holds Rotate until release is closed.
type blockingSessionStore struct {
	fakeSessionStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSessionStore) Rotate(ctx context.Context, old string) (string, error) {
	close(b.entered)
	<-b.release
	return b.fakeSessionStore.Rotate(ctx, old)
}

type fakeCounterStore struct {
	mu     sync.Mutex
	days   []time.Time
	types  []models.EventType
	err    error
	counts map[models.EventType]int64
	getErr map[models.EventType]error
}

func (f *fakeCounterStore) Incr(ctx context.Context, t models.EventType, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, t)
	f.days = append(f.days, day)
	return f.err
}

func (f *fakeCounterStore) Get(ctx context.Context, t models.EventType, day time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, day)
	if err := f.getErr[t]; err != nil {
		return 0, err
	}
	return f.counts[t], nil
}
