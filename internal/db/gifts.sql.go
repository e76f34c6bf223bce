package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const giftColumns = `id, slug, edit_token, status, phrase, relationship_start, letter,
	photo_url, photo_path, checkout_session_id, checkout_started_at,
	payment_reference, buyer_email, paid_at, disabled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGift(row rowScanner) (Gift, error) {
	var g Gift
	err := row.Scan(
		&g.ID,
		&g.Slug,
		&g.EditToken,
		&g.Status,
		&g.Phrase,
		&g.RelationshipStart,
		&g.Letter,
		&g.PhotoUrl,
		&g.PhotoPath,
		&g.CheckoutSessionID,
		&g.CheckoutStartedAt,
		&g.PaymentReference,
		&g.BuyerEmail,
		&g.PaidAt,
		&g.DisabledAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

const createGift = `-- name: CreateGift :one
INSERT INTO gifts (id, slug, edit_token, status, phrase, relationship_start, letter)
VALUES ($1, $2, $3, 'draft', $4, $5, $6)
RETURNING ` + giftColumns

type CreateGiftParams struct {
	ID                uuid.UUID
	Slug              string
	EditToken         string
	Phrase            sql.NullString
	RelationshipStart sql.NullTime
	Letter            sql.NullString
}

func (q *Queries) CreateGift(ctx context.Context, arg CreateGiftParams) (Gift, error) {
	row := q.db.QueryRowContext(ctx, createGift,
		arg.ID,
		arg.Slug,
		arg.EditToken,
		arg.Phrase,
		arg.RelationshipStart,
		arg.Letter,
	)
	return scanGift(row)
}

const getGiftByID = `-- name: GetGiftByID :one
SELECT ` + giftColumns + `
FROM gifts
WHERE id = $1`

func (q *Queries) GetGiftByID(ctx context.Context, id uuid.UUID) (Gift, error) {
	return scanGift(q.db.QueryRowContext(ctx, getGiftByID, id))
}

const getGiftBySlug = `-- name: GetGiftBySlug :one
SELECT ` + giftColumns + `
FROM gifts
WHERE slug = $1`

func (q *Queries) GetGiftBySlug(ctx context.Context, slug string) (Gift, error) {
	return scanGift(q.db.QueryRowContext(ctx, getGiftBySlug, slug))
}

const updateGiftContent = `-- name: UpdateGiftContent :one
UPDATE gifts
SET phrase             = COALESCE($2, phrase),
    relationship_start = COALESCE($3, relationship_start),
    letter             = COALESCE($4, letter),
    updated_at         = now()
WHERE id = $1 AND status = 'draft'
RETURNING ` + giftColumns

// UpdateGiftContentParams leaves a column untouched when its field is NULL.
type UpdateGiftContentParams struct {
	ID                uuid.UUID
	Phrase            sql.NullString
	RelationshipStart sql.NullTime
	Letter            sql.NullString
}

func (q *Queries) UpdateGiftContent(ctx context.Context, arg UpdateGiftContentParams) (Gift, error) {
	row := q.db.QueryRowContext(ctx, updateGiftContent,
		arg.ID,
		arg.Phrase,
		arg.RelationshipStart,
		arg.Letter,
	)
	return scanGift(row)
}

const setGiftPhoto = `-- name: SetGiftPhoto :one
UPDATE gifts
SET photo_url  = $2,
    photo_path = $3,
    updated_at = now()
WHERE id = $1 AND status = 'draft'
RETURNING ` + giftColumns

type SetGiftPhotoParams struct {
	ID        uuid.UUID
	PhotoUrl  string
	PhotoPath string
}

func (q *Queries) SetGiftPhoto(ctx context.Context, arg SetGiftPhotoParams) (Gift, error) {
	return scanGift(q.db.QueryRowContext(ctx, setGiftPhoto, arg.ID, arg.PhotoUrl, arg.PhotoPath))
}

const attachCheckoutSession = `-- name: AttachCheckoutSession :one
UPDATE gifts
SET checkout_session_id = $2,
    checkout_started_at = $3,
    updated_at          = now()
WHERE id = $1 AND status = 'draft'
RETURNING ` + giftColumns

type AttachCheckoutSessionParams struct {
	ID                uuid.UUID
	CheckoutSessionID string
	StartedAt         time.Time
}

func (q *Queries) AttachCheckoutSession(ctx context.Context, arg AttachCheckoutSessionParams) (Gift, error) {
	return scanGift(q.db.QueryRowContext(ctx, attachCheckoutSession, arg.ID, arg.CheckoutSessionID, arg.StartedAt))
}

const markGiftPaid = `-- name: MarkGiftPaid :one
UPDATE gifts
SET status            = 'paid',
    paid_at           = $2,
    payment_reference = $3,
    buyer_email       = COALESCE($4, buyer_email),
    updated_at        = now()
WHERE id = $1 AND status = 'draft'
RETURNING ` + giftColumns

type MarkGiftPaidParams struct {
	ID               uuid.UUID
	PaidAt           time.Time
	PaymentReference string
	BuyerEmail       sql.NullString
}

// MarkGiftPaid is the compare-and-set for draft → paid. It returns
// sql.ErrNoRows when the gift is missing or no longer a draft, so concurrent
// confirmations of the same gift apply exactly once.
func (q *Queries) MarkGiftPaid(ctx context.Context, arg MarkGiftPaidParams) (Gift, error) {
	row := q.db.QueryRowContext(ctx, markGiftPaid,
		arg.ID,
		arg.PaidAt,
		arg.PaymentReference,
		arg.BuyerEmail,
	)
	return scanGift(row)
}

const disableGift = `-- name: DisableGift :one
UPDATE gifts
SET status      = 'disabled',
    disabled_at = COALESCE(disabled_at, now()),
    updated_at  = now()
WHERE id = $1
RETURNING ` + giftColumns

func (q *Queries) DisableGift(ctx context.Context, id uuid.UUID) (Gift, error) {
	return scanGift(q.db.QueryRowContext(ctx, disableGift, id))
}

const listPendingCheckouts = `-- name: ListPendingCheckouts :many
SELECT ` + giftColumns + `
FROM gifts
WHERE status = 'draft'
  AND checkout_session_id IS NOT NULL
  AND checkout_started_at > $1
ORDER BY checkout_started_at
LIMIT 200`

func (q *Queries) ListPendingCheckouts(ctx context.Context, startedAfter time.Time) ([]Gift, error) {
	rows, err := q.db.QueryContext(ctx, listPendingCheckouts, startedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Gift
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
