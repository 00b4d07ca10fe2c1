package storage

import (
	"testing"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildWhere(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    models.EventFilter
		ph        placeholderFunc
		wantWhere string
		wantArgs  int
	}{
		{
			name:      "no constraints",
			filter:    models.EventFilter{Order: models.OrderDescending, Limit: 10},
			ph:        dollarPlaceholder,
			wantWhere: "",
		},
		{
			name:      "postgres placeholders",
			filter:    models.EventFilter{Type: models.EventChatbotMessageSent, UserID: "u1"},
			ph:        dollarPlaceholder,
			wantWhere: " WHERE event_type = $1 AND user_id = $2",
			wantArgs:  2,
		},
		{
			name:      "clickhouse range",
			filter:    models.EventFilter{SessionID: "s1", Start: start, End: end},
			ph:        questionPlaceholder,
			wantWhere: " WHERE session_id = ? AND timestamp >= ? AND timestamp < ?",
			wantArgs:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildWhere(tt.filter, tt.ph)
			assert.Equal(t, tt.wantWhere, where)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestBuildTail(t *testing.T) {
	assert.Equal(t, "", buildTail(models.EventFilter{}))
	assert.Equal(t, " ORDER BY timestamp ASC", buildTail(models.EventFilter{Order: models.OrderAscending}))
	assert.Equal(t, " ORDER BY timestamp DESC LIMIT 500", buildTail(models.EventFilter{Order: models.OrderDescending, Limit: 500}))
}
