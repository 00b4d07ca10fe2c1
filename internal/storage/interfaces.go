package storage

import (
	"context"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
)

// =============================================
// EVENT STORE
// =============================================

// EventStore is the append-only analytics event log.
type EventStore interface {
	// Insert appends e and sets e.ID to the identifier assigned by the store.
	Insert(ctx context.Context, e *models.Event) error

	// Query returns the events matching f, honoring f.Order and f.Limit.
	Query(ctx context.Context, f models.EventFilter) ([]*models.Event, error)

	// Count returns the number of events matching f. Order and Limit are ignored.
	Count(ctx context.Context, f models.EventFilter) (int64, error)
}

// =============================================
// SESSION STORE
// =============================================

// SessionStore issues browsing session identifiers.
type SessionStore interface {
	// Create issues a new session id.
	Create(ctx context.Context) (string, error)

	// Touch reports whether id is a live session and extends its lifetime.
	Touch(ctx context.Context, id string) (bool, error)

	// Rotate ends the session old (if any) and issues a new id.
	Rotate(ctx context.Context, old string) (string, error)
}

// =============================================
// GOAL STORE
// =============================================

// GoalStore reads user goals for the dashboard summary.
type GoalStore interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Goal, error)
}

// =============================================
// COUNTER STORE
// =============================================

// CounterStore keeps a live per-day tally of recorded events by type.
type CounterStore interface {
	Incr(ctx context.Context, t models.EventType, day time.Time) error
	Get(ctx context.Context, t models.EventType, day time.Time) (int64, error)
}

// dayKey formats the UTC calendar day used to key daily counters.
func dayKey(day time.Time) string {
	return day.UTC().Format("2006-01-02")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
