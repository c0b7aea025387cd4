package db

import (
	"context"
	"testing"
)

func TestConnectRejectsBadDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{name: "empty dsn parses but cannot connect", dsn: "postgres://user@%"},
		{name: "garbage scheme", dsn: "://not-a-dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := Connect(context.Background(), tt.dsn)
			if err == nil {
				pool.Close()
				t.Errorf("Connect(%q) succeeded, want parse error", tt.dsn)
			}
		})
	}
}
