package subscriber

import (
	"fmt"
	"net/http"
	"time"
)

// Wire header names for outbound webhook requests. These are reserved: a
// subscriber's additional headers may never carry one of them.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderEventType = "X-Webhook-Event-Type"
	HeaderEventID   = "X-Webhook-Event-ID"
)

var reservedHeaders = map[string]struct{}{
	http.CanonicalHeaderKey("Content-Type"):  {},
	http.CanonicalHeaderKey("User-Agent"):    {},
	http.CanonicalHeaderKey(HeaderSignature): {},
	http.CanonicalHeaderKey(HeaderTimestamp): {},
	http.CanonicalHeaderKey(HeaderEventType): {},
	http.CanonicalHeaderKey(HeaderEventID):   {},
}

// Subscriber is a registered external endpoint. The record is owned by the
// subscription-management collaborator; this core only reads it.
type Subscriber struct {
	ID          string
	URL         string
	Secret      string
	EventTypes  []string
	Active      bool
	MaxAttempts int
	Timeout     time.Duration
	Headers     map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SubscribesTo reports whether the subscriber registered for the event type.
// Matching is exact; there are no wildcard semantics.
func (s Subscriber) SubscribesTo(eventType string) bool {
	for _, et := range s.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// IsReservedHeader reports whether name collides, case-insensitively, with a
// header this core sets on every outbound request.
func IsReservedHeader(name string) bool {
	_, ok := reservedHeaders[http.CanonicalHeaderKey(name)]
	return ok
}

// ValidateHeaders rejects additional-header maps that contain a reserved
// name. The subscription-management collaborator calls this before saving a
// subscriber; the delivery client still applies reserved headers last in case
// validation was bypassed.
func ValidateHeaders(headers map[string]string) error {
	for name := range headers {
		if IsReservedHeader(name) {
			return fmt.Errorf("header %q is reserved", name)
		}
	}
	return nil
}
