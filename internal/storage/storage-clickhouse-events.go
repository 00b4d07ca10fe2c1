package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/radiusdt/printworks-analytics/internal/models"
)

// ClickHouseEventStore implements EventStore on a ClickHouse MergeTree table.
// Ids are generated client side since ClickHouse has no RETURNING.
type ClickHouseEventStore struct {
	conn clickhouse.Conn
}

// NewClickHouseEventStore creates a new ClickHouse-backed event store.
func NewClickHouseEventStore(conn clickhouse.Conn) *ClickHouseEventStore {
	return &ClickHouseEventStore{conn: conn}
}

// Insert stores a single event.
func (s *ClickHouseEventStore) Insert(ctx context.Context, e *models.Event) error {
	return s.InsertBatch(ctx, []*models.Event{e})
}

// InsertBatch stores events in one native batch and assigns their ids.
// Ids are only set once the batch has been sent.
func (s *ClickHouseEventStore) InsertBatch(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO analytics_events (
			id, event_type, event_data, user_id, session_id, timestamp,
			user_agent, ip_address, country, device_os, device_type
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		data, err := e.DataJSON()
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to encode event data: %w", err)
		}

		ids[i] = uuid.New()
		err = batch.Append(
			ids[i],
			string(e.Type),
			string(data),
			nullString(e.UserID),
			e.SessionID,
			e.Timestamp.UTC(),
			e.UserAgent,
			nullString(e.IPAddress),
			e.Country,
			e.DeviceOS,
			e.DeviceType,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	for i, e := range events {
		e.ID = ids[i].String()
	}
	return nil
}

// Query retrieves events matching the filter.
func (s *ClickHouseEventStore) Query(ctx context.Context, f models.EventFilter) ([]*models.Event, error) {
	where, args := buildWhere(f, questionPlaceholder)
	query := `SELECT toString(id), event_type, event_data, user_id, session_id, timestamp,
		user_agent, ip_address, country, device_os, device_type
		FROM analytics_events` + where + buildTail(f)

	rows, err := s.conn.Query(ctx, query, args...)
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
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *ClickHouseEventStore) Count(ctx context.Context, f models.EventFilter) (int64, error) {
	where, args := buildWhere(f, questionPlaceholder)

	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM analytics_events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return int64(n), nil
}
