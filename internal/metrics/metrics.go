package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hookline_events_dispatched_total",
			Help: "Total number of events fanned out into deliveries.",
		},
	)

	DeliveriesStagedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hookline_deliveries_staged_total",
			Help: "Total number of pending deliveries written by the dispatcher.",
		},
	)

	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_delivery_attempts_total",
			Help: "Total number of delivery attempts by result.",
		},
		[]string{"result"}, // delivered, retrying, failed
	)

	AttemptLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hookline_delivery_attempt_latency_seconds",
			Help:    "Wall-clock latency of webhook HTTP attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_retries_total",
			Help: "Total number of delivery retries by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, timeout, network, other
	)

	ClaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hookline_claimed_deliveries_total",
			Help: "Total number of deliveries claimed by scheduler workers.",
		},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(EventsDispatchedTotal, DeliveriesStagedTotal,
		AttemptsTotal, AttemptLatency, RetriesTotal, ClaimedTotal)
}

// RecordDispatch counts one dispatched event and its staged deliveries.
func RecordDispatch(deliveries int) {
	EventsDispatchedTotal.Inc()
	DeliveriesStagedTotal.Add(float64(deliveries))
}

// RecordAttempt counts one delivery attempt and observes its latency.
func RecordAttempt(result string, latency time.Duration) {
	AttemptsTotal.WithLabelValues(result).Inc()
	AttemptLatency.Observe(latency.Seconds())
}

// RecordRetry counts one scheduled retry by failure reason.
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// RecordClaimed counts deliveries claimed in one poll cycle.
func RecordClaimed(n int) {
	ClaimedTotal.Add(float64(n))
}
