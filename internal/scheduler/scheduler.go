package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hooklinehq/hookline/internal/backoff"
	"github.com/hooklinehq/hookline/internal/delivery"
	"github.com/hooklinehq/hookline/internal/logging"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/subscriber"
	"github.com/hooklinehq/hookline/internal/tracing"
)

// Store is the slice of the delivery store the scheduler needs: atomic claim
// of due rows and persisting transition outcomes.
type Store interface {
	ClaimDue(ctx context.Context, workerID string, limit int, lease time.Duration) ([]*delivery.Delivery, error)
	Update(ctx context.Context, d *delivery.Delivery) error
}

// Directory resolves a delivery's subscriber at claim time, so deliveries to
// withdrawn subscribers fail fast instead of burning network attempts.
type Directory interface {
	Get(ctx context.Context, id string) (*subscriber.Subscriber, error)
}

// Client performs one HTTP attempt.
type Client interface {
	Deliver(ctx context.Context, sub subscriber.Subscriber, eventType, eventID string, payload []byte) delivery.Outcome
}

type Config struct {
	WorkerID     string
	PollInterval time.Duration
	BatchSize    int
	ClaimLease   time.Duration
	Backoff      backoff.Policy
}

// Scheduler runs the delivery state machine: it claims due pending/retrying
// rows in bounded batches, invokes the client once per row, and transitions
// state through the store. All retry logic lives here so attempt counting and
// terminal-state detection are auditable from stored data alone.
type Scheduler struct {
	store  Store
	subs   Directory
	client Client
	cfg    Config
	logger *logging.Logger
}

func New(store Store, subs Directory, client Client, cfg Config, logger *logging.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	return &Scheduler{store: store, subs: subs, client: client, cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled. Cycles that find nothing sleep through
// the poll interval; a large backlog drains batch by batch.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Plain().WithField("worker_id", s.cfg.WorkerID).Info("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Plain().Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.WithContext(ctx).WithError(err).Error("claim cycle failed")
			}
		}
	}
}

// RunCycle claims one batch of due deliveries and processes it sequentially,
// returning how many rows were handled.
func (s *Scheduler) RunCycle(ctx context.Context) (int, error) {
	claimed, err := s.store.ClaimDue(ctx, s.cfg.WorkerID, s.cfg.BatchSize, s.cfg.ClaimLease)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}
	metrics.RecordClaimed(len(claimed))

	for _, d := range claimed {
		s.process(ctx, d)
	}
	return len(claimed), nil
}

// process runs one claimed delivery through a single attempt and persists the
// resulting transition.
func (s *Scheduler) process(ctx context.Context, d *delivery.Delivery) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.process",
		attribute.String("delivery_id", d.ID),
		attribute.String("subscriber_id", d.SubscriberID),
		attribute.String("event_id", d.EventID),
		attribute.Int("attempt", d.AttemptCount),
	)
	defer span.End()

	sub, err := s.subs.Get(ctx, d.SubscriberID)
	if err != nil || !sub.Active {
		if err != nil && !errors.Is(err, subscriber.ErrNotFound) {
			// Transient lookup failure: release the claim untouched so the
			// row comes back in a later cycle.
			tracing.SetSpanError(ctx, err)
			s.logger.WithContext(ctx).WithDelivery(d.ID).WithError(err).Error("subscriber lookup failed")
			if updErr := s.store.Update(ctx, d); updErr != nil {
				s.logger.WithContext(ctx).WithDelivery(d.ID).WithError(updErr).Error("release claim failed")
			}
			return
		}
		// Withdrawn subscriber: terminal, no network attempt, no attempt
		// consumed.
		d.Status = delivery.StatusFailed
		d.NextRetryAt = nil
		d.LastError = "subscriber not found or inactive"
		span.SetAttributes(attribute.String("delivery.final_status", string(d.Status)))
		metrics.RecordAttempt("failed", 0)
		if updErr := s.store.Update(ctx, d); updErr != nil {
			s.logger.WithContext(ctx).WithDelivery(d.ID).WithError(updErr).Error("db update failed")
		}
		s.logger.WithContext(ctx).WithDelivery(d.ID).WithSubscriber(d.SubscriberID).Warn("subscriber withdrawn, delivery failed")
		return
	}

	out := s.client.Deliver(ctx, *sub, d.EventType, d.EventID, d.Payload)
	s.transition(d, out, time.Now().UTC())

	span.SetAttributes(
		attribute.Int("http.status_code", out.StatusCode),
		attribute.Int64("http.latency_ms", out.Latency.Milliseconds()),
		attribute.String("delivery.final_status", string(d.Status)),
		attribute.Int("delivery.final_attempt", d.AttemptCount),
	)

	switch d.Status {
	case delivery.StatusDelivered:
		metrics.RecordAttempt("delivered", out.Latency)
		s.logger.WithContext(ctx).WithDelivery(d.ID).WithSubscriber(d.SubscriberID).WithFields(map[string]any{
			"attempt":     d.AttemptCount,
			"http_status": out.StatusCode,
			"latency_ms":  out.Latency.Milliseconds(),
		}).Info("delivered")
	case delivery.StatusRetrying:
		reason := classifyReason(out)
		metrics.RecordAttempt("retrying", out.Latency)
		metrics.RecordRetry(reason)
		s.logger.WithContext(ctx).WithDelivery(d.ID).WithSubscriber(d.SubscriberID).WithFields(map[string]any{
			"attempt":       d.AttemptCount,
			"reason":        reason,
			"next_retry_at": d.NextRetryAt,
		}).Info("attempt failed, retry scheduled")
	case delivery.StatusFailed:
		metrics.RecordAttempt("failed", out.Latency)
		s.logger.WithContext(ctx).WithDelivery(d.ID).WithSubscriber(d.SubscriberID).WithFields(map[string]any{
			"attempt": d.AttemptCount,
			"error":   d.LastError,
		}).Warn("attempt budget exhausted, delivery failed")
	}

	if err := s.store.Update(ctx, d); err != nil {
		tracing.SetSpanError(ctx, err)
		s.logger.WithContext(ctx).WithDelivery(d.ID).WithError(err).Error("db update failed")
	}
}

// transition applies the state machine to a delivery given one attempt's
// outcome. The attempt that would push attempt_count past max_attempts is the
// one that sets failed; the count never exceeds the budget.
func (s *Scheduler) transition(d *delivery.Delivery, out delivery.Outcome, now time.Time) {
	d.ResponseStatus = out.StatusCode
	d.ResponseBody = delivery.TruncateBody([]byte(out.Body))
	d.LatencyMS = out.Latency.Milliseconds()

	if out.Success {
		d.Status = delivery.StatusDelivered
		d.AttemptCount++
		d.NextRetryAt = nil
		d.LastError = ""
		return
	}

	d.LastError = out.Err
	if d.AttemptCount+1 >= d.MaxAttempts {
		d.Status = delivery.StatusFailed
		d.AttemptCount++
		d.NextRetryAt = nil
		return
	}
	delay := s.cfg.Backoff.NextDelay(d.AttemptCount)
	next := now.Add(delay)
	d.Status = delivery.StatusRetrying
	d.AttemptCount++
	d.NextRetryAt = &next
}

func classifyReason(out delivery.Outcome) string {
	if out.StatusCode == 0 {
		errLower := strings.ToLower(out.Err)
		if strings.Contains(errLower, "deadline exceeded") || strings.Contains(errLower, "timeout") {
			return "timeout"
		}
		if strings.Contains(errLower, "connection refused") {
			return "connection_refused"
		}
		if strings.Contains(errLower, "no such host") || strings.Contains(errLower, "dns") {
			return "dns_error"
		}
		return "network"
	}
	if out.StatusCode >= 500 {
		return "http_5xx"
	}
	if out.StatusCode == 429 {
		return "http_429"
	}
	if out.StatusCode >= 400 {
		return "http_4xx"
	}
	return "other"
}
