package storage

import (
	"context"
	"testing"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewInMemorySessionStore(30 * time.Minute)
	s.now = func() time.Time { return now }

	id, err := s.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ok, err := s.Touch(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	rotated, err := s.Rotate(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, id, rotated)

	ok, _ = s.Touch(ctx, id)
	assert.False(t, ok, "old session ends on rotation")
	ok, _ = s.Touch(ctx, rotated)
	assert.True(t, ok)

	now = now.Add(31 * time.Minute)
	ok, _ = s.Touch(ctx, rotated)
	assert.False(t, ok, "session expires after ttl")
}

func TestInMemorySessionStoreNoTTL(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySessionStore(0)

	id, err := s.Create(ctx)
	require.NoError(t, err)
	ok, err := s.Touch(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryCounterStore(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCounterStore()
	day := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)

	require.NoError(t, c.Incr(ctx, models.EventPageView, day))
	require.NoError(t, c.Incr(ctx, models.EventPageView, day.Add(10*time.Minute)))
	require.NoError(t, c.Incr(ctx, models.EventPageView, day.Add(time.Hour)))

	n, err := c.Get(ctx, models.EventPageView, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = c.Get(ctx, models.EventPageView, day.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counters roll over at UTC midnight")

	assert.Equal(t, "stats:events:page_view:2024-05-01", counterKey(models.EventPageView, day))
}

func TestInMemoryGoalStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryGoalStore()
	s.Add(&models.Goal{ID: "g1", UserID: "u1", Status: models.GoalCompleted})
	s.Add(&models.Goal{ID: "g2", UserID: "u1", Status: models.GoalPending})
	s.Add(&models.Goal{ID: "g3", UserID: "u2", Status: models.GoalPending})

	goals, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, goals, 2)

	goals, err = s.ListByUser(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, goals)
}
