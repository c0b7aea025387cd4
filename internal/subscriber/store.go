package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no subscriber exists for the requested id.
var ErrNotFound = errors.New("subscriber not found")

const subscriberColumns = `id, url, secret, event_types, active, max_attempts, timeout_ms, headers, created_at, updated_at`

// Directory is the read interface over the subscriber table owned by the
// subscription-management service.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// Get returns the subscriber with the given id, or ErrNotFound.
func (d *Directory) Get(ctx context.Context, id string) (*Subscriber, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+subscriberColumns+`
		FROM hookline.subscribers
		WHERE id = $1`, id)
	sub, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return sub, nil
}

// FindForEvent returns the active subscribers registered for the event type.
// An empty result is not an error.
func (d *Directory) FindForEvent(ctx context.Context, eventType string) ([]Subscriber, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+subscriberColumns+`
		FROM hookline.subscribers
		WHERE active AND $1 = ANY(event_types)
		ORDER BY created_at ASC`, eventType)
	if err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}
	return subs, nil
}

func scanSubscriber(row pgx.Row) (*Subscriber, error) {
	var (
		s         Subscriber
		timeoutMS int
		headers   []byte
	)
	if err := row.Scan(&s.ID, &s.URL, &s.Secret, &s.EventTypes, &s.Active,
		&s.MaxAttempts, &timeoutMS, &headers, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Timeout = time.Duration(timeoutMS) * time.Millisecond
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &s.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}
	return &s, nil
}
