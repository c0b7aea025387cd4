package delivery

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hooklinehq/hookline/internal/subscriber"
)

// Status is the lifecycle state of a delivery. delivered and failed are
// terminal; retrying waits for next_retry_at to come due.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRetrying  Status = "retrying"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// ResponseBodyCap bounds how much of a subscriber's response body is stored
// per attempt.
const ResponseBodyCap = 5000

// Delivery is one tracked attempt-series to notify a single subscriber about
// a single event. MaxAttempts is copied from the subscriber at creation time
// so later subscriber edits do not change in-flight deliveries.
type Delivery struct {
	ID             string     `json:"id"`
	SubscriberID   string     `json:"subscriber_id"`
	EventType      string     `json:"event_type"`
	EventID        string     `json:"event_id"`
	Payload        []byte     `json:"payload,omitempty"`
	Status         Status     `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	ResponseStatus int        `json:"response_status,omitempty"`
	ResponseBody   string     `json:"response_body,omitempty"`
	LatencyMS      int64      `json:"latency_ms,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// New stages a pending delivery for the given subscriber and event, eligible
// for immediate pickup.
func New(sub subscriber.Subscriber, eventType, eventID string, payload []byte) *Delivery {
	now := time.Now().UTC()
	return &Delivery{
		ID:           uuid.NewString(),
		SubscriberID: sub.ID,
		EventType:    eventType,
		EventID:      eventID,
		Payload:      payload,
		Status:       StatusPending,
		AttemptCount: 0,
		MaxAttempts:  sub.MaxAttempts,
		NextRetryAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether no further automatic transitions apply.
func (d *Delivery) Terminal() bool {
	return d.Status == StatusDelivered || d.Status == StatusFailed
}

// Retryable reports whether a manual retry may re-arm this delivery. Only
// failed and retrying rows qualify, and never with a spent attempt budget:
// the count is preserved across manual retries, not reset.
func (d *Delivery) Retryable() error {
	if d.Status != StatusFailed && d.Status != StatusRetrying {
		return fmt.Errorf("%w: status is %s", ErrRetryNotAllowed, d.Status)
	}
	if d.AttemptCount >= d.MaxAttempts {
		return ErrRetryExhausted
	}
	return nil
}

// TruncateBody trims a response body to ResponseBodyCap bytes.
func TruncateBody(body []byte) string {
	if len(body) > ResponseBodyCap {
		body = body[:ResponseBodyCap]
	}
	return string(body)
}
