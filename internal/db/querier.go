package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Querier is every query the application runs. Methods that return a single
// row surface sql.ErrNoRows when nothing matched, including when a guarded
// UPDATE (status = 'draft') found the row in another state.
type Querier interface {
	CreateGift(ctx context.Context, arg CreateGiftParams) (Gift, error)
	GetGiftByID(ctx context.Context, id uuid.UUID) (Gift, error)
	GetGiftBySlug(ctx context.Context, slug string) (Gift, error)
	UpdateGiftContent(ctx context.Context, arg UpdateGiftContentParams) (Gift, error)
	SetGiftPhoto(ctx context.Context, arg SetGiftPhotoParams) (Gift, error)
	AttachCheckoutSession(ctx context.Context, arg AttachCheckoutSessionParams) (Gift, error)
	MarkGiftPaid(ctx context.Context, arg MarkGiftPaidParams) (Gift, error)
	DisableGift(ctx context.Context, id uuid.UUID) (Gift, error)
	ListPendingCheckouts(ctx context.Context, startedAfter time.Time) ([]Gift, error)

	UpsertStripeEvent(ctx context.Context, arg UpsertStripeEventParams) (StripeEvent, error)
	MarkStripeEventProcessed(ctx context.Context, stripeEventID string) (StripeEvent, error)
	MarkStripeEventFailed(ctx context.Context, arg MarkStripeEventFailedParams) (StripeEvent, error)
}

var _ Querier = (*Queries)(nil)
