package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	stripeinternal "github.com/nyashahama/lovewheel-backend/internal/stripe"
)

// HandleWebhook processes one Stripe delivery end to end.
//
// Stripe delivers events at-least-once and retries on non-2xx responses, so
// every step is idempotent:
//   - the event id is recorded first; an id already processed is acked
//   - a previously failed id is processed again
//   - the gift transition itself is the guarded UPDATE in transition
//
// Return values map onto HTTP: ErrInvalidSignature → 400, any other error →
// 500 (Stripe retries), nil → 200.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sig string) error {
	// ── 1. Verify the signature over the raw body ─────────────────────────────
	event, err := s.stripe.VerifyWebhook(payload, sig, s.cfg.WebhookSecret)
	if err != nil {
		s.logger.Warn("webhook: invalid signature", "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	// ── 2. Idempotency: record the event, skip if already processed ───────────
	// The upsert returns no row for an id already marked processed.
	_, err = s.q.UpsertStripeEvent(ctx, stripeinternal.ToUpsertParams(event, payload))
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("webhook: duplicate event, skipping", "event_id", event.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("upsert stripe event: %w", err)
	}

	// ── 3. Dispatch by event type ─────────────────────────────────────────────
	var handlerErr error

	switch event.Type {
	case stripeinternal.EventCheckoutCompleted, stripeinternal.EventAsyncPaymentSucceeded:
		handlerErr = s.onCheckoutPaid(ctx, event)

	case stripeinternal.EventAsyncPaymentFailed, stripeinternal.EventCheckoutExpired:
		s.onCheckoutAbandoned(event)

	default:
		s.logger.Debug("webhook: unhandled event type", "type", event.Type, "event_id", event.ID)
	}

	// ── 4. Mark event processed (or failed) ───────────────────────────────────
	if handlerErr != nil {
		s.logger.Error("webhook: handler error",
			"event_id", event.ID,
			"type", event.Type,
			"error", handlerErr,
		)
		if _, err := s.q.MarkStripeEventFailed(ctx, stripeinternal.ToMarkFailedParams(event.ID, handlerErr)); err != nil {
			s.logger.Warn("webhook: mark event failed", "event_id", event.ID, "error", err)
		}
		return handlerErr
	}

	if _, err := s.q.MarkStripeEventProcessed(ctx, event.ID); err != nil {
		s.logger.Warn("webhook: mark event processed", "event_id", event.ID, "error", err)
	}
	return nil
}

// onCheckoutPaid routes a completed checkout to the gift named in its
// metadata. Only transient failures are returned; a session that names no
// gift, an unknown gift or a mismatch is logged and acknowledged.
func (s *Service) onCheckoutPaid(ctx context.Context, event stripeinternal.Event) error {
	cs, err := stripeinternal.SessionFromEvent(event)
	if err != nil {
		return fmt.Errorf("onCheckoutPaid: %w", err)
	}

	giftRef := cs.GiftID()
	if giftRef == "" {
		s.logger.Warn("webhook: checkout session without gift metadata",
			"event_id", event.ID,
			"session_id", cs.ID,
		)
		return nil
	}

	res := s.withDraft(ctx, giftRef, func(gift db.Gift) Result {
		return s.confirmFromEvent(ctx, gift, event)
	})

	switch {
	case res.Retryable():
		return fmt.Errorf("onCheckoutPaid: gift %s: %w", giftRef, res.Cause)
	case res.Outcome == OutcomeNotFound:
		s.logger.Warn("webhook: gift in metadata does not exist", "gift_ref", giftRef, "event_id", event.ID)
	default:
		s.logger.Info("webhook: checkout applied",
			"gift_id", res.GiftID,
			"outcome", res.Outcome,
			"reason", res.Reason,
			"event_id", event.ID,
		)
	}
	return nil
}

// onCheckoutAbandoned covers failed async payments and expired sessions. The
// gift stays a draft and the buyer can start a new checkout.
func (s *Service) onCheckoutAbandoned(event stripeinternal.Event) {
	cs, err := stripeinternal.SessionFromEvent(event)
	if err != nil {
		s.logger.Warn("webhook: malformed checkout event", "event_id", event.ID, "error", err)
		return
	}
	s.logger.Info("webhook: checkout not paid",
		"type", event.Type,
		"gift_id", cs.GiftID(),
		"session_id", cs.ID,
	)
}
