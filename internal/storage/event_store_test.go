package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvents(t *testing.T, s *InMemoryEventStore) {
	t.Helper()
	base := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	events := []*models.Event{
		{Type: models.EventPageView, SessionID: "s1", Timestamp: base.Add(2 * time.Hour)},
		{Type: models.EventPageView, SessionID: "s1", Timestamp: base},
		{Type: models.EventChatbotMessageSent, UserID: "u1", SessionID: "s2", Timestamp: base.Add(time.Hour)},
		{Type: models.EventServicePageVisited, UserID: "u1", SessionID: "s2", Timestamp: base.Add(48 * time.Hour)},
	}
	for _, e := range events {
		require.NoError(t, s.Insert(context.Background(), e))
	}
}

func TestInMemoryEventStoreInsertAssignsID(t *testing.T) {
	s := NewInMemoryEventStore()
	e := &models.Event{Type: models.EventPageView, SessionID: "s1", Timestamp: time.Now()}

	require.NoError(t, s.Insert(context.Background(), e))
	assert.NotEmpty(t, e.ID)

	got, err := s.Query(context.Background(), models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)

	got[0].SessionID = "mutated"
	again, err := s.Query(context.Background(), models.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, "s1", again[0].SessionID, "returned events are copies")
}

func TestInMemoryEventStoreQueryOrderAndLimit(t *testing.T) {
	s := NewInMemoryEventStore()
	seedEvents(t, s)
	ctx := context.Background()

	asc, err := s.Query(ctx, models.EventFilter{Order: models.OrderAscending})
	require.NoError(t, err)
	require.Len(t, asc, 4)
	for i := 1; i < len(asc); i++ {
		assert.False(t, asc[i].Timestamp.Before(asc[i-1].Timestamp))
	}

	desc, err := s.Query(ctx, models.EventFilter{Order: models.OrderDescending, Limit: 2})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, models.EventServicePageVisited, desc[0].Type)

	pv, err := s.Query(ctx, models.EventFilter{Type: models.EventPageView, SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, pv, 2)
}

func TestInMemoryEventStoreCount(t *testing.T) {
	s := NewInMemoryEventStore()
	seedEvents(t, s)
	ctx := context.Background()

	n, err := s.Count(ctx, models.EventFilter{UserID: "u1", Type: models.EventChatbotMessageSent})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Count(ctx, models.EventFilter{
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.Count(ctx, models.EventFilter{UserID: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInMemoryEventStoreCanceledContext(t *testing.T) {
	s := NewInMemoryEventStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Insert(ctx, &models.Event{Type: models.EventPageView})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Len())
}

func TestInMemoryEventStoreConcurrentInsert(t *testing.T) {
	s := NewInMemoryEventStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Insert(ctx, &models.Event{
				Type:      models.EventPageView,
				SessionID: fmt.Sprintf("s%d", i%5),
				Timestamp: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx, models.EventFilter{Type: models.EventPageView})
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}
