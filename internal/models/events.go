package models

import (
	"encoding/json"
	"time"
)

// ===========================================
// EVENT TYPES
// ===========================================

// EventType tags an analytics event. The set below is closed for derived
// metrics; stores still accept any non-empty type.
type EventType string

const (
	EventPageView              EventType = "page_view"
	EventChatbotMessageSent    EventType = "chatbot_message_sent"
	EventServicePageVisited    EventType = "service_page_visited"
	EventContactFormSubmitted  EventType = "contact_form_submitted"
	EventSuggestionClicked     EventType = "suggestion_clicked"
	EventImageAnalyzed         EventType = "image_analyzed"
	EventProactiveMessageShown EventType = "proactive_message_shown"
)

var knownEventTypes = []EventType{
	EventPageView,
	EventChatbotMessageSent,
	EventServicePageVisited,
	EventContactFormSubmitted,
	EventSuggestionClicked,
	EventImageAnalyzed,
	EventProactiveMessageShown,
}

// KnownEventTypes returns the closed set of event types in a stable order.
func KnownEventTypes() []EventType {
	out := make([]EventType, len(knownEventTypes))
	copy(out, knownEventTypes)
	return out
}

// Known reports whether t belongs to the closed set.
func (t EventType) Known() bool {
	for _, k := range knownEventTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ===========================================
// EVENT
// ===========================================

// Event is one immutable telemetry record.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"event_type"`
	Data      Payload   `json:"event_data"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	// Enrichment, filled by the recorder on the server side
	UserAgent  string `json:"user_agent,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	Country    string `json:"country,omitempty"`
	DeviceOS   string `json:"device_os,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
}

// Anonymous reports whether the event has no owning user.
func (e *Event) Anonymous() bool {
	return e.UserID == ""
}

// DataJSON returns the payload encoded for storage. A nil payload encodes as {}.
func (e *Event) DataJSON() ([]byte, error) {
	return MarshalPayload(e.Data)
}

// UnmarshalJSON decodes the payload according to event_type.
func (e *Event) UnmarshalJSON(b []byte) error {
	type alias Event
	aux := struct {
		*alias
		Data json.RawMessage `json:"event_data"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Data = DecodeStoredPayload(e.Type, aux.Data)
	return nil
}

// ===========================================
// FILTERS
// ===========================================

// SortOrder orders query results by timestamp.
type SortOrder int

const (
	OrderNone SortOrder = iota
	OrderAscending
	OrderDescending
)

// EventFilter narrows an event query. Zero values mean "no constraint".
// Start is inclusive and End is exclusive.
type EventFilter struct {
	Type      EventType
	UserID    string
	SessionID string
	Start     time.Time
	End       time.Time
	Order     SortOrder
	Limit     int
}

// Matches reports whether e satisfies every equality and range constraint.
// Order and Limit are not considered.
func (f EventFilter) Matches(e *Event) bool {
	if e == nil {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !e.Timestamp.Before(f.End) {
		return false
	}
	return true
}
