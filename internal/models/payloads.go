package models

import (
	"encoding/json"
	"fmt"
)

// Payload is the type-specific body of an event. Every known EventType has
// exactly one payload struct; RawPayload carries anything else.
type Payload interface {
	EventType() EventType
}

// PageView is recorded when a page of the site is rendered.
type PageView struct {
	PageName string `json:"pageName"`
	PageURL  string `json:"pageUrl"`
	Referrer string `json:"referrer,omitempty"`
	Language string `json:"language"`
}

func (PageView) EventType() EventType { return EventPageView }

// ChatbotInteraction is one user message to the support chatbot and its reply.
type ChatbotInteraction struct {
	MessageType      string `json:"messageType"` // text or image
	UserMessage      string `json:"userMessage"`
	BotResponse      string `json:"botResponse"`
	HasImageAnalysis bool   `json:"hasImageAnalysis,omitempty"`
	Language         string `json:"language"`
}

func (ChatbotInteraction) EventType() EventType { return EventChatbotMessageSent }

// ServicePageVisit is a visit to one of the service detail pages.
type ServicePageVisit struct {
	ServiceName string   `json:"serviceName"`
	TimeSpent   *float64 `json:"timeSpent,omitempty"`   // seconds
	ScrollDepth *float64 `json:"scrollDepth,omitempty"` // percent
	Language    string   `json:"language"`
}

func (ServicePageVisit) EventType() EventType { return EventServicePageVisited }

// ContactFormSubmission records the outcome of a contact form post.
type ContactFormSubmission struct {
	FormData     map[string]any `json:"formData,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Language     string         `json:"language"`
}

func (ContactFormSubmission) EventType() EventType { return EventContactFormSubmitted }

// SuggestionClick is a click on a chatbot quick-reply suggestion.
type SuggestionClick struct {
	SuggestionText string `json:"suggestionText"`
	Category       string `json:"category"`
	Language       string `json:"language"`
}

func (SuggestionClick) EventType() EventType { return EventSuggestionClicked }

// ImageAnalysis records an uploaded image and the analysis returned for it.
type ImageAnalysis struct {
	FileName       string          `json:"fileName"`
	FileSize       int64           `json:"fileSize"`
	FileType       string          `json:"fileType"`
	AnalysisResult json.RawMessage `json:"analysisResult,omitempty"`
	Language       string          `json:"language"`
}

func (ImageAnalysis) EventType() EventType { return EventImageAnalyzed }

// ProactiveMessage is a chatbot message shown without user prompting.
type ProactiveMessage struct {
	TriggerType    string `json:"triggerType"`
	PageName       string `json:"pageName"`
	MessageContent string `json:"messageContent"`
	Language       string `json:"language"`
}

func (ProactiveMessage) EventType() EventType { return EventProactiveMessageShown }

// RawPayload holds the body of an event type this build does not model.
type RawPayload struct {
	Type   EventType
	Fields map[string]any
}

func (p RawPayload) EventType() EventType { return p.Type }

// MarshalJSON encodes only the fields, so raw payloads round-trip unchanged.
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if p.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.Fields)
}

// MarshalPayload encodes p for the event_data column. Nil encodes as {}.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// DecodePayload strictly decodes data into the payload struct for t.
// Unknown types decode into a RawPayload.
func DecodePayload(t EventType, data []byte) (Payload, error) {
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}

	var (
		p   Payload
		err error
	)
	switch t {
	case EventPageView:
		var v PageView
		err = json.Unmarshal(data, &v)
		p = v
	case EventChatbotMessageSent:
		var v ChatbotInteraction
		err = json.Unmarshal(data, &v)
		p = v
	case EventServicePageVisited:
		var v ServicePageVisit
		err = json.Unmarshal(data, &v)
		p = v
	case EventContactFormSubmitted:
		var v ContactFormSubmission
		err = json.Unmarshal(data, &v)
		p = v
	case EventSuggestionClicked:
		var v SuggestionClick
		err = json.Unmarshal(data, &v)
		p = v
	case EventImageAnalyzed:
		var v ImageAnalysis
		err = json.Unmarshal(data, &v)
		p = v
	case EventProactiveMessageShown:
		var v ProactiveMessage
		err = json.Unmarshal(data, &v)
		p = v
	default:
		var fields map[string]any
		err = json.Unmarshal(data, &fields)
		p = RawPayload{Type: t, Fields: fields}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// DecodeStoredPayload is the lenient variant used when reading rows back:
// a body that does not fit its type is kept as a RawPayload instead of
// failing the whole read.
func DecodeStoredPayload(t EventType, data []byte) Payload {
	p, err := DecodePayload(t, data)
	if err == nil {
		return p
	}
	var fields map[string]any
	_ = json.Unmarshal(data, &fields)
	return RawPayload{Type: t, Fields: fields}
}
