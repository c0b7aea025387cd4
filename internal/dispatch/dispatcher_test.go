package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/hooklinehq/hookline/internal/delivery"
	"github.com/hooklinehq/hookline/internal/logging"
	"github.com/hooklinehq/hookline/internal/subscriber"
)

type fakeMatcher struct {
	subs []subscriber.Subscriber
	err  error
}

func (m *fakeMatcher) FindForEvent(_ context.Context, _ string) ([]subscriber.Subscriber, error) {
	return m.subs, m.err
}

type fakeCreator struct {
	batches [][]*delivery.Delivery
	skip    int // rows reported as already staged
	err     error
}

func (c *fakeCreator) CreateBatch(_ context.Context, ds []*delivery.Delivery) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.batches = append(c.batches, ds)
	return len(ds) - c.skip, nil
}

func TestDispatchFansOutPerSubscriber(t *testing.T) {
	matcher := &fakeMatcher{subs: []subscriber.Subscriber{
		{ID: "sub-1", MaxAttempts: 3},
		{ID: "sub-2", MaxAttempts: 5},
		{ID: "sub-3", MaxAttempts: 1},
	}}
	creator := &fakeCreator{}
	d := New(matcher, creator, logging.New("test"))

	n, err := d.Dispatch(context.Background(), "order.created", "evt-1", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Dispatch() = %d, want 3", n)
	}
	if len(creator.batches) != 1 {
		t.Fatalf("CreateBatch called %d times, want 1 (single durable batch)", len(creator.batches))
	}

	batch := creator.batches[0]
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
	for i, d := range batch {
		if d.Status != delivery.StatusPending {
			t.Errorf("delivery %d status = %q, want pending", i, d.Status)
		}
		if d.AttemptCount != 0 {
			t.Errorf("delivery %d attempt_count = %d, want 0", i, d.AttemptCount)
		}
		if d.NextRetryAt == nil {
			t.Errorf("delivery %d next_retry_at is nil, want eligible now", i)
		}
	}
	if batch[1].MaxAttempts != 5 {
		t.Errorf("max_attempts not copied from subscriber: got %d, want 5", batch[1].MaxAttempts)
	}
}

func TestDispatchCountsOnlyNewlyStagedDeliveries(t *testing.T) {
	matcher := &fakeMatcher{subs: []subscriber.Subscriber{
		{ID: "sub-1", MaxAttempts: 3},
		{ID: "sub-2", MaxAttempts: 3},
		{ID: "sub-3", MaxAttempts: 3},
	}}
	// A redelivered event finds two of three rows already staged.
	creator := &fakeCreator{skip: 2}
	d := New(matcher, creator, logging.New("test"))

	n, err := d.Dispatch(context.Background(), "order.created", "evt-1", nil)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Dispatch() = %d, want 1 (skipped duplicates must not count)", n)
	}
}

func TestDispatchNoMatchesTouchesNothing(t *testing.T) {
	creator := &fakeCreator{}
	d := New(&fakeMatcher{}, creator, logging.New("test"))

	n, err := d.Dispatch(context.Background(), "order.created", "evt-1", nil)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if n != 0 {
		t.Errorf("Dispatch() = %d, want 0", n)
	}
	if len(creator.batches) != 0 {
		t.Errorf("CreateBatch called %d times, want 0 when nothing matches", len(creator.batches))
	}
}

func TestDispatchMatcherError(t *testing.T) {
	d := New(&fakeMatcher{err: errors.New("db down")}, &fakeCreator{}, logging.New("test"))
	if _, err := d.Dispatch(context.Background(), "order.created", "evt-1", nil); err == nil {
		t.Errorf("Dispatch() succeeded, want matcher error surfaced")
	}
}

func TestDispatchStorageErrorSurfaces(t *testing.T) {
	matcher := &fakeMatcher{subs: []subscriber.Subscriber{{ID: "sub-1", MaxAttempts: 3}}}
	d := New(matcher, &fakeCreator{err: errors.New("storage unavailable")}, logging.New("test"))

	n, err := d.Dispatch(context.Background(), "order.created", "evt-1", nil)
	if err == nil {
		t.Fatalf("Dispatch() succeeded, want storage error surfaced to the caller")
	}
	if n != 0 {
		t.Errorf("Dispatch() = %d on failure, want 0", n)
	}
}
