package subscriber

import "testing"

func TestSubscribesTo(t *testing.T) {
	tests := []struct {
		name       string
		eventTypes []string
		eventType  string
		want       bool
	}{
		{
			name:       "exact match",
			eventTypes: []string{"order.created", "order.updated"},
			eventType:  "order.created",
			want:       true,
		},
		{
			name:       "no match",
			eventTypes: []string{"order.created"},
			eventType:  "order.deleted",
			want:       false,
		},
		{
			name:       "no wildcard semantics",
			eventTypes: []string{"order.*"},
			eventType:  "order.created",
			want:       false,
		},
		{
			name:       "case sensitive",
			eventTypes: []string{"Order.Created"},
			eventType:  "order.created",
			want:       false,
		},
		{
			name:       "empty set",
			eventTypes: nil,
			eventType:  "order.created",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Subscriber{EventTypes: tt.eventTypes}
			if got := s.SubscribesTo(tt.eventType); got != tt.want {
				t.Errorf("SubscribesTo(%q) = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestIsReservedHeader(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "X-Webhook-Signature", want: true},
		{name: "x-webhook-signature", want: true},
		{name: "X-WEBHOOK-TIMESTAMP", want: true},
		{name: "content-type", want: true},
		{name: "user-agent", want: true},
		{name: "X-Webhook-Event-Type", want: true},
		{name: "X-Webhook-Event-ID", want: true},
		{name: "X-Custom-Header", want: false},
		{name: "Authorization", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReservedHeader(tt.name); got != tt.want {
				t.Errorf("IsReservedHeader(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestValidateHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantErr bool
	}{
		{
			name:    "nil headers",
			headers: nil,
			wantErr: false,
		},
		{
			name:    "custom headers allowed",
			headers: map[string]string{"X-Api-Key": "abc", "Authorization": "Bearer t"},
			wantErr: false,
		},
		{
			name:    "reserved header rejected",
			headers: map[string]string{"X-Webhook-Signature": "spoofed"},
			wantErr: true,
		},
		{
			name:    "reserved header rejected case-insensitively",
			headers: map[string]string{"x-webhook-event-id": "spoofed"},
			wantErr: true,
		},
		{
			name:    "content-type rejected",
			headers: map[string]string{"Content-Type": "text/plain"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeaders(tt.headers)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
