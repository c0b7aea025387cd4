package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hooklinehq/hookline/internal/signature"
	"github.com/hooklinehq/hookline/internal/subscriber"
	"github.com/hooklinehq/hookline/internal/tracing"
)

// Outcome is the structured result of one HTTP attempt. Err is empty on
// success; a non-2xx status yields "HTTP <code>".
type Outcome struct {
	Success    bool
	StatusCode int
	Body       string
	Latency    time.Duration
	Err        string
}

// Client performs a single HTTP attempt against a subscriber's endpoint. It
// never retries and never touches delivery state; the scheduler owns both.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	defaultTimeout time.Duration
}

// NewClient returns a delivery client. The underlying transport carries no
// global timeout: each attempt is bounded by the subscriber's configured
// timeout, falling back to defaultTimeout when the subscriber has none.
func NewClient(userAgent string, defaultTimeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{},
		userAgent:      userAgent,
		defaultTimeout: defaultTimeout,
	}
}

// Deliver signs and POSTs the payload to the subscriber's endpoint and
// classifies the result. The response body is captured up to ResponseBodyCap
// regardless of outcome.
func (c *Client) Deliver(ctx context.Context, sub subscriber.Subscriber, eventType, eventID string, payload []byte) Outcome {
	timeout := sub.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "delivery.http_attempt",
		attribute.String("subscriber_id", sub.ID),
		attribute.String("event_type", eventType),
		attribute.String("event_id", eventID),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return Outcome{Err: fmt.Sprintf("build request: %v", err)}
	}

	// Subscriber extras first, reserved headers last so they always win even
	// if configuration-time validation was bypassed.
	for name, value := range sub.Headers {
		req.Header.Set(name, value)
	}
	ts := signature.Timestamp(time.Now())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(subscriber.HeaderSignature, signature.Sign(sub.Secret, ts, payload))
	req.Header.Set(subscriber.HeaderTimestamp, ts)
	req.Header.Set(subscriber.HeaderEventType, eventType)
	req.Header.Set(subscriber.HeaderEventID, eventID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)

	out := Outcome{Latency: latency}
	if err != nil {
		out.Err = fmt.Sprintf("request failed: %v", err)
		tracing.SetSpanError(ctx, err)
		span.SetAttributes(attribute.Int64("http.latency_ms", latency.Milliseconds()))
		return out
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, ResponseBodyCap))
	out.StatusCode = resp.StatusCode
	out.Body = string(body)

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int64("http.latency_ms", latency.Milliseconds()),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out.Success = true
		return out
	}
	out.Err = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return out
}
