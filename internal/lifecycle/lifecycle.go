// Package lifecycle owns the only state change that matters to a gift: the
// forward-only draft → paid transition. Every entry point that can prove a
// payment (the Stripe webhook, the buyer's redirect carrying a session id,
// the sync endpoint and the background reconciler) is a thin adapter over
// ConfirmPayment, and all of them converge on one conditional UPDATE.
//
// The package also owns the public read guard (LoadPublic), so the rule that
// decides who may see a gift's content lives next to the rule that unlocks it.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/email"
	"github.com/nyashahama/lovewheel-backend/internal/slug"
	stripeinternal "github.com/nyashahama/lovewheel-backend/internal/stripe"
)

// Config holds the values the core needs from application configuration.
type Config struct {
	WebhookSecret string // STRIPE_WEBHOOK_SECRET
	PublicAppURL  string // base of share links, e.g. "https://lovewheel.app"
	AmountCents   int64  // flat price, quoted in the receipt
	Currency      string
}

// Service is the payment-confirmation core.
type Service struct {
	q      db.Querier
	stripe stripeinternal.Client
	mailer email.Sender
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now. Tests use it to pin paid_at and days_together.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(q db.Querier, sc stripeinternal.Client, mailer email.Sender, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		q:      q,
		stripe: sc,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShareURL is the public link for a gift.
func ShareURL(publicAppURL, giftSlug string) string {
	return strings.TrimRight(publicAppURL, "/") + "/g/" + giftSlug
}

// resolveGift loads a gift by UUID or by slug. A reference that is neither is
// reported as not found without touching the database.
func (s *Service) resolveGift(ctx context.Context, ref string) (db.Gift, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.lookup(s.q.GetGiftByID(ctx, id))
	}
	if slug.Valid(ref) {
		return s.lookup(s.q.GetGiftBySlug(ctx, ref))
	}
	return db.Gift{}, ErrNotFound
}

func (s *Service) lookup(g db.Gift, err error) (db.Gift, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return db.Gift{}, ErrNotFound
	}
	return g, err
}
