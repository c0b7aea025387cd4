package dispatch

import (
	"encoding/json"
	"errors"
)

// Event is the wire envelope carried on the events topic. TraceHeaders carry
// W3C trace context across the queue hop.
type Event struct {
	EventType    string            `json:"event_type"`
	EventID      string            `json:"event_id"`
	Payload      json.RawMessage   `json:"payload"`
	TraceHeaders map[string]string `json:"trace_headers,omitempty"`
}

func (e *Event) Validate() error {
	if e.EventType == "" {
		return errors.New("event_type is required")
	}
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if len(e.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}
