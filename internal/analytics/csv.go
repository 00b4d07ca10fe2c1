package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
)

var csvHeader = []string{"ID", "Event Type", "Event Data", "User ID", "Session ID", "Timestamp", "User Agent"}

// WriteEventsCSV writes events as CSV with a header row. Event data is
// written as its JSON encoding and timestamps as RFC 3339 in UTC.
func WriteEventsCSV(w io.Writer, events []*models.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, e := range events {
		if e == nil {
			continue
		}
		data, err := e.DataJSON()
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
		ts := ""
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{
			e.ID,
			string(e.Type),
			string(data),
			e.UserID,
			e.SessionID,
			ts,
			e.UserAgent,
		}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export file after its table and UTC day.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("analytics_events_%s.csv", now.UTC().Format("2006-01-02"))
}
