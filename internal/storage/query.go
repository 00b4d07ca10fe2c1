package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
)

// placeholderFunc renders the n-th (1-based) bind parameter.
type placeholderFunc func(n int) string

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

// buildWhere renders the WHERE clause for f (empty when f has no
// constraints) and its bind arguments.
func buildWhere(f models.EventFilter, ph placeholderFunc) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}

	if f.Type != "" {
		add("event_type = %s", string(f.Type))
	}
	if f.UserID != "" {
		add("user_id = %s", f.UserID)
	}
	if f.SessionID != "" {
		add("session_id = %s", f.SessionID)
	}
	if !f.Start.IsZero() {
		add("timestamp >= %s", f.Start.UTC())
	}
	if !f.End.IsZero() {
		add("timestamp < %s", f.End.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildTail renders ORDER BY and LIMIT for f.
func buildTail(f models.EventFilter) string {
	var b strings.Builder
	switch f.Order {
	case models.OrderAscending:
		b.WriteString(" ORDER BY timestamp ASC")
	case models.OrderDescending:
		b.WriteString(" ORDER BY timestamp DESC")
	}
	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	}
	return b.String()
}

// rowScanner is satisfied by pgx.Row(s) and the ClickHouse driver rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one row selected as
// id, event_type, event_data, user_id, session_id, timestamp,
// user_agent, ip_address, country, device_os, device_type.
func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		e         models.Event
		eventType string
		data      string
		userID    *string
		ip        *string
		ts        time.Time
	)
	if err := row.Scan(&e.ID, &eventType, &data, &userID, &e.SessionID, &ts,
		&e.UserAgent, &ip, &e.Country, &e.DeviceOS, &e.DeviceType); err != nil {
		return nil, err
	}

	e.Type = models.EventType(eventType)
	e.Data = models.DecodeStoredPayload(e.Type, []byte(data))
	e.UserID = derefString(userID)
	e.IPAddress = derefString(ip)
	e.Timestamp = ts.UTC()
	return &e, nil
}
