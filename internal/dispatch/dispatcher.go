package dispatch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hooklinehq/hookline/internal/delivery"
	"github.com/hooklinehq/hookline/internal/logging"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/subscriber"
	"github.com/hooklinehq/hookline/internal/tracing"
)

// Matcher returns the active subscribers registered for an event type.
type Matcher interface {
	FindForEvent(ctx context.Context, eventType string) ([]subscriber.Subscriber, error)
}

// Creator stages deliveries durably and reports how many rows it actually
// created. The whole batch must land or none of it; rows skipped as already
// staged do not count.
type Creator interface {
	CreateBatch(ctx context.Context, ds []*delivery.Delivery) (int, error)
}

// Dispatcher fans a fired event out into one pending delivery per matched
// subscriber. It performs no network I/O: staging is decoupled from delivery
// so a webhook outage never slows the code path that raised the event.
type Dispatcher struct {
	matcher    Matcher
	deliveries Creator
	logger     *logging.Logger
}

func New(matcher Matcher, deliveries Creator, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{matcher: matcher, deliveries: deliveries, logger: logger}
}

// Dispatch writes one pending delivery per matching subscriber and returns
// how many were staged. Storage failures surface to the caller: losing an
// event silently is worse than failing loudly at the point that can still
// retry the whole dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType, eventID string, payload []byte) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.event",
		attribute.String("event_type", eventType),
		attribute.String("event_id", eventID),
	)
	defer span.End()

	subs, err := d.matcher.FindForEvent(ctx, eventType)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return 0, fmt.Errorf("match subscribers: %w", err)
	}
	span.SetAttributes(attribute.Int("subscribers_count", len(subs)))
	if len(subs) == 0 {
		return 0, nil
	}

	ds := make([]*delivery.Delivery, 0, len(subs))
	for _, sub := range subs {
		ds = append(ds, delivery.New(sub, eventType, eventID, payload))
	}
	staged, err := d.deliveries.CreateBatch(ctx, ds)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return 0, fmt.Errorf("stage deliveries: %w", err)
	}

	metrics.RecordDispatch(staged)
	d.logger.WithContext(ctx).WithEvent(eventID).WithFields(map[string]any{
		"event_type": eventType,
		"deliveries": staged,
	}).Info("event dispatched")
	return staged, nil
}
