package delivery

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hooklinehq/hookline/internal/subscriber"
)

func TestNew(t *testing.T) {
	sub := subscriber.Subscriber{
		ID:          "sub-1",
		URL:         "https://example.com/hook",
		MaxAttempts: 5,
	}
	payload := []byte(`{"order_id":42}`)

	before := time.Now().UTC()
	d := New(sub, "order.created", "evt-1", payload)
	after := time.Now().UTC()

	if d.ID == "" {
		t.Errorf("New() ID is empty")
	}
	if d.SubscriberID != "sub-1" {
		t.Errorf("New() SubscriberID = %q, want sub-1", d.SubscriberID)
	}
	if d.EventType != "order.created" {
		t.Errorf("New() EventType = %q, want order.created", d.EventType)
	}
	if d.EventID != "evt-1" {
		t.Errorf("New() EventID = %q, want evt-1", d.EventID)
	}
	if d.Status != StatusPending {
		t.Errorf("New() Status = %q, want %q", d.Status, StatusPending)
	}
	if d.AttemptCount != 0 {
		t.Errorf("New() AttemptCount = %d, want 0", d.AttemptCount)
	}
	if d.MaxAttempts != 5 {
		t.Errorf("New() MaxAttempts = %d, want 5 (copied from subscriber)", d.MaxAttempts)
	}
	if d.NextRetryAt == nil {
		t.Fatalf("New() NextRetryAt is nil, want eligible now")
	}
	if d.NextRetryAt.Before(before) || d.NextRetryAt.After(after) {
		t.Errorf("New() NextRetryAt = %v not between %v and %v", d.NextRetryAt, before, after)
	}
	if string(d.Payload) != string(payload) {
		t.Errorf("New() Payload = %q, want %q", d.Payload, payload)
	}
}

func TestNewDistinctIDs(t *testing.T) {
	sub := subscriber.Subscriber{ID: "sub-1", MaxAttempts: 3}
	a := New(sub, "order.created", "evt-1", nil)
	b := New(sub, "order.created", "evt-2", nil)
	if a.ID == b.ID {
		t.Errorf("New() produced duplicate ids: %q", a.ID)
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusRetrying, false},
		{StatusDelivered, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		d := Delivery{Status: tt.status}
		if got := d.Terminal(); got != tt.want {
			t.Errorf("Terminal() with status %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		attempt int
		max     int
		wantErr error
	}{
		{name: "failed with budget left", status: StatusFailed, attempt: 2, max: 3, wantErr: nil},
		{name: "retrying with budget left", status: StatusRetrying, attempt: 1, max: 5, wantErr: nil},
		{name: "failed with zero attempts", status: StatusFailed, attempt: 0, max: 3, wantErr: nil},
		{name: "failed at budget", status: StatusFailed, attempt: 3, max: 3, wantErr: ErrRetryExhausted},
		{name: "retrying at budget", status: StatusRetrying, attempt: 5, max: 5, wantErr: ErrRetryExhausted},
		{name: "delivered", status: StatusDelivered, attempt: 1, max: 3, wantErr: ErrRetryNotAllowed},
		{name: "pending", status: StatusPending, attempt: 0, max: 3, wantErr: ErrRetryNotAllowed},
		{name: "delivered at budget rejects on status first", status: StatusDelivered, attempt: 3, max: 3, wantErr: ErrRetryNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Delivery{Status: tt.status, AttemptCount: tt.attempt, MaxAttempts: tt.max}
			err := d.Retryable()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Retryable() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Retryable() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want int
	}{
		{name: "under cap", body: []byte("short"), want: 5},
		{name: "at cap", body: []byte(strings.Repeat("a", ResponseBodyCap)), want: ResponseBodyCap},
		{name: "over cap", body: []byte(strings.Repeat("a", ResponseBodyCap*2)), want: ResponseBodyCap},
		{name: "empty", body: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateBody(tt.body); len(got) != tt.want {
				t.Errorf("TruncateBody() length = %d, want %d", len(got), tt.want)
			}
		})
	}
}
