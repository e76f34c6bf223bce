package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

const stripeEventColumns = `id, stripe_event_id, type, payload, status, error, received_at, processed_at`

func scanStripeEvent(row rowScanner) (StripeEvent, error) {
	var e StripeEvent
	err := row.Scan(
		&e.ID,
		&e.StripeEventID,
		&e.Type,
		&e.Payload,
		&e.Status,
		&e.Error,
		&e.ReceivedAt,
		&e.ProcessedAt,
	)
	return e, err
}

const upsertStripeEvent = `-- name: UpsertStripeEvent :one
INSERT INTO stripe_events (stripe_event_id, type, payload)
VALUES ($1, $2, $3)
ON CONFLICT (stripe_event_id) DO UPDATE
SET status = 'received',
    error  = NULL
WHERE stripe_events.status <> 'processed'
RETURNING ` + stripeEventColumns

type UpsertStripeEventParams struct {
	StripeEventID string
	Type          string
	Payload       json.RawMessage
}

// UpsertStripeEvent records a delivery. A redelivery of an event that was
// already processed matches no row and returns sql.ErrNoRows; a redelivery of
// a failed event is reset to received so it is handled again.
func (q *Queries) UpsertStripeEvent(ctx context.Context, arg UpsertStripeEventParams) (StripeEvent, error) {
	payload := pqtype.NullRawMessage{
		RawMessage: arg.Payload,
		Valid:      len(arg.Payload) > 0,
	}
	return scanStripeEvent(q.db.QueryRowContext(ctx, upsertStripeEvent, arg.StripeEventID, arg.Type, payload))
}

const markStripeEventProcessed = `-- name: MarkStripeEventProcessed :one
UPDATE stripe_events
SET status       = 'processed',
    error        = NULL,
    processed_at = now()
WHERE stripe_event_id = $1
RETURNING ` + stripeEventColumns

func (q *Queries) MarkStripeEventProcessed(ctx context.Context, stripeEventID string) (StripeEvent, error) {
	return scanStripeEvent(q.db.QueryRowContext(ctx, markStripeEventProcessed, stripeEventID))
}

const markStripeEventFailed = `-- name: MarkStripeEventFailed :one
UPDATE stripe_events
SET status = 'failed',
    error  = $2
WHERE stripe_event_id = $1
RETURNING ` + stripeEventColumns

type MarkStripeEventFailedParams struct {
	StripeEventID string
	Error         sql.NullString
}

func (q *Queries) MarkStripeEventFailed(ctx context.Context, arg MarkStripeEventFailedParams) (StripeEvent, error) {
	return scanStripeEvent(q.db.QueryRowContext(ctx, markStripeEventFailed, arg.StripeEventID, arg.Error))
}
