package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/printworks-analytics/internal/models"
)

// PostgresEventStore implements EventStore using PostgreSQL.
type PostgresEventStore struct {
	pool *pgxpool.Pool
}

// NewPostgresEventStore creates a new PostgreSQL-backed event store.
func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

// Insert stores an event. The id comes from the column default.
func (s *PostgresEventStore) Insert(ctx context.Context, e *models.Event) error {
	data, err := e.DataJSON()
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO analytics_events (event_type, event_data, user_id, session_id, timestamp,
			user_agent, ip_address, country, device_os, device_type)
		VALUES ($1, $2::jsonb, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id::text
	`, string(e.Type), string(data), nullString(e.UserID), e.SessionID, e.Timestamp.UTC(),
		e.UserAgent, nullString(e.IPAddress), e.Country, e.DeviceOS, e.DeviceType).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	e.ID = id
	return nil
}

// Query retrieves events matching the filter.
func (s *PostgresEventStore) Query(ctx context.Context, f models.EventFilter) ([]*models.Event, error) {
	where, args := buildWhere(f, dollarPlaceholder)
	sql := `SELECT id::text, event_type, event_data::text, user_id, session_id, timestamp,
		user_agent, ip_address, country, device_os, device_type
		FROM analytics_events` + where + buildTail(f)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *PostgresEventStore) Count(ctx context.Context, f models.EventFilter) (int64, error) {
	where, args := buildWhere(f, dollarPlaceholder)

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM analytics_events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
