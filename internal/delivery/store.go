package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no delivery exists for the requested id.
	ErrNotFound = errors.New("delivery not found")
	// ErrRetryNotAllowed is returned when a manual retry targets a delivery
	// that is not in a retryable state.
	ErrRetryNotAllowed = errors.New("delivery is not in a retryable state")
	// ErrRetryExhausted is returned when a manual retry targets a delivery
	// whose attempt budget is already spent.
	ErrRetryExhausted = errors.New("delivery attempt budget exhausted")
)

const deliveryColumns = `id, subscriber_id, event_type, event_id, payload, status,
	attempt_count, max_attempts, next_retry_at, response_status, response_body,
	latency_ms, last_error, claimed_by, claimed_at, created_at, updated_at`

// Store is the durable delivery table. It is the single source of truth:
// workers never cache delivery state across poll cycles.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateBatch inserts all deliveries inside one transaction so a fanned-out
// event is staged completely or not at all. Rows that already exist for the
// same (subscriber, event) pair are skipped, making redelivered events from
// the queue idempotent; the returned count covers only rows actually created.
func (s *Store) CreateBatch(ctx context.Context, ds []*Delivery) (int, error) {
	if len(ds) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, d := range ds {
		batch.Queue(`
			INSERT INTO hookline.deliveries
				(id, subscriber_id, event_type, event_id, payload, status,
				 attempt_count, max_attempts, next_retry_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT (subscriber_id, event_id) DO NOTHING`,
			d.ID, d.SubscriberID, d.EventType, d.EventID, d.Payload, d.Status,
			d.AttemptCount, d.MaxAttempts, d.NextRetryAt, d.CreatedAt, d.UpdatedAt)
	}
	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range ds {
		ct, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("insert delivery: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Get returns the delivery with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Delivery, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM hookline.deliveries
		WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

// ListByEvent returns deliveries for an event, optionally filtered by status,
// oldest first.
func (s *Store) ListByEvent(ctx context.Context, eventID string, status Status, limit int) ([]*Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	args := []any{eventID}
	q := `
		SELECT ` + deliveryColumns + `
		FROM hookline.deliveries
		WHERE event_id = $1`
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(`
		ORDER BY created_at ASC
		LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return out, nil
}

// ClaimDue atomically claims up to limit due deliveries for workerID. Rows are
// selected oldest next_retry_at first with FOR UPDATE SKIP LOCKED so
// concurrent workers never claim the same row, and a busy worker never blocks
// another. Claims older than lease are treated as abandoned by a crashed
// worker and become claimable again.
func (s *Store) ClaimDue(ctx context.Context, workerID string, limit int, lease time.Duration) ([]*Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE hookline.deliveries
		SET claimed_by = $1, claimed_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM hookline.deliveries
			WHERE status IN ('pending', 'retrying')
			  AND next_retry_at <= now()
			  AND attempt_count < max_attempts
			  AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))
			ORDER BY next_retry_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+deliveryColumns, workerID, lease.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}
	defer rows.Close()

	var claimed []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed delivery: %w", err)
		}
		claimed = append(claimed, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}
	return claimed, nil
}

// Update persists the outcome of a processed delivery and releases its claim.
func (s *Store) Update(ctx context.Context, d *Delivery) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE hookline.deliveries
		SET status = $2, attempt_count = $3, next_retry_at = $4,
		    response_status = $5, response_body = $6, latency_ms = $7,
		    last_error = $8, claimed_by = '', claimed_at = NULL, updated_at = now()
		WHERE id = $1`,
		d.ID, d.Status, d.AttemptCount, d.NextRetryAt,
		d.ResponseStatus, d.ResponseBody, d.LatencyMS, d.LastError)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Retry re-arms a failed or retrying delivery for immediate pickup. The
// attempt count is preserved, so a delivery at its budget is rejected with
// ErrRetryExhausted rather than silently no-oping.
func (s *Store) Retry(ctx context.Context, id string) (*Delivery, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.Retryable(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE hookline.deliveries
		SET status = 'pending', next_retry_at = now(), last_error = '',
		    claimed_by = '', claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND status IN ('failed', 'retrying') AND attempt_count < max_attempts
		RETURNING `+deliveryColumns, id)
	updated, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a race with the scheduler between Get and Update.
		return nil, ErrRetryNotAllowed
	}
	if err != nil {
		return nil, fmt.Errorf("retry delivery: %w", err)
	}
	return updated, nil
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	if err := row.Scan(&d.ID, &d.SubscriberID, &d.EventType, &d.EventID, &d.Payload,
		&d.Status, &d.AttemptCount, &d.MaxAttempts, &d.NextRetryAt,
		&d.ResponseStatus, &d.ResponseBody, &d.LatencyMS, &d.LastError,
		&d.ClaimedBy, &d.ClaimedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
