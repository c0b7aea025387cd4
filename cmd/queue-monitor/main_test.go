package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func statsServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestUpdateMetrics(t *testing.T) {
	srv := statsServer(t, `{
		"topics": [
			{
				"topic_name": "events",
				"depth": 12,
				"channels": [
					{"channel_name": "ingest", "depth": 7, "in_flight_count": 3},
					{"channel_name": "audit", "depth": 2, "in_flight_count": 0}
				]
			},
			{
				"topic_name": "other",
				"depth": 99,
				"channels": [{"channel_name": "ingest", "depth": 99, "in_flight_count": 9}]
			}
		]
	}`)
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	if err := updateMetrics(host, "events", "ingest"); err != nil {
		t.Fatalf("updateMetrics() error: %v", err)
	}

	if got := gaugeValue(t, eventsBacklog); got != 7 {
		t.Errorf("events backlog = %v, want 7 (ingest channel depth only)", got)
	}
	if got := gaugeValue(t, channelDepth.WithLabelValues("events", "audit")); got != 2 {
		t.Errorf("audit channel depth = %v, want 2", got)
	}
	if got := gaugeValue(t, channelInflight.WithLabelValues("events", "ingest")); got != 3 {
		t.Errorf("ingest in-flight = %v, want 3", got)
	}
}

func TestUpdateMetricsBadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>`},
		{name: "truncated", body: `{"topics": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := statsServer(t, tt.body)
			defer srv.Close()

			host := strings.TrimPrefix(srv.URL, "http://")
			if err := updateMetrics(host, "events", "ingest"); err == nil {
				t.Error("updateMetrics() = nil, want decode error")
			}
		})
	}
}

func TestUpdateMetricsUnreachable(t *testing.T) {
	srv := statsServer(t, `{}`)
	srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	if err := updateMetrics(host, "events", "ingest"); err == nil {
		t.Error("updateMetrics() = nil, want connection error")
	}
}
