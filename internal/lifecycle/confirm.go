package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/email"
	stripeinternal "github.com/nyashahama/lovewheel-backend/internal/stripe"
)

// receiptTimeout bounds the receipt email so a slow provider cannot hold a
// webhook delivery open.
const receiptTimeout = 15 * time.Second

// ConfirmPayment reconciles one piece of evidence against the gift named by
// ref (UUID or slug) and applies the draft → paid transition when the
// evidence proves payment. It never returns an error: gateway and storage
// failures come back as a Pending result with Cause set.
func (s *Service) ConfirmPayment(ctx context.Context, ref string, ev Evidence) Result {
	return s.withDraft(ctx, ref, func(gift db.Gift) Result {
		switch ev.Kind {
		case EvidenceWebhook:
			event, err := s.stripe.VerifyWebhook(ev.Payload, ev.Signature, s.cfg.WebhookSecret)
			if err != nil {
				s.logger.Warn("confirm: webhook signature rejected", "gift_id", gift.ID, "error", err)
				return resultFor(gift, OutcomeInvalidSignature)
			}
			return s.confirmFromEvent(ctx, gift, event)

		case EvidenceSession:
			return s.confirmFromSession(ctx, gift, ev.SessionID)

		default:
			return pending(gift, ReasonAwaitingPayment, nil)
		}
	})
}

// withDraft resolves ref and calls apply only for a draft gift. Unknown,
// disabled and already-paid gifts short-circuit without contacting Stripe.
func (s *Service) withDraft(ctx context.Context, ref string, apply func(db.Gift) Result) Result {
	gift, err := s.resolveGift(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return Result{Outcome: OutcomeNotFound}
	}
	if err != nil {
		s.logger.Error("confirm: load gift", "ref", ref, "error", err)
		return Result{Outcome: OutcomePending, Reason: ReasonStorageUnavailable, Cause: err}
	}

	// Disabled wins over everything, including a stored paid_at.
	if gift.Status == db.GiftStatusDisabled {
		return resultFor(gift, OutcomeGone)
	}
	if gift.Status == db.GiftStatusPaid {
		return resultFor(gift, OutcomeAlreadyPaid)
	}

	return apply(gift)
}

// confirmFromEvent applies a verified webhook event to a draft gift. The
// session metadata is the trust anchor: an event for another gift is a no-op.
func (s *Service) confirmFromEvent(ctx context.Context, gift db.Gift, event stripeinternal.Event) Result {
	if !confirmsPayment(event.Type) {
		return pending(gift, ReasonEventNotConfirming, nil)
	}

	cs, err := stripeinternal.SessionFromEvent(event)
	if err != nil {
		s.logger.Warn("confirm: malformed checkout event", "event_id", event.ID, "error", err)
		return pending(gift, ReasonEventNotConfirming, nil)
	}

	if cs.GiftID() != gift.ID.String() {
		s.logger.Warn("confirm: event metadata names another gift",
			"gift_id", gift.ID,
			"metadata_gift_id", cs.GiftID(),
			"event_id", event.ID,
		)
		return resultFor(gift, OutcomeMismatch)
	}

	if !cs.IsPaid() {
		return pending(gift, pendingReason(cs), nil)
	}

	return s.transition(ctx, gift, cs)
}

// confirmFromSession asks the gateway for the session's current state.
func (s *Service) confirmFromSession(ctx context.Context, gift db.Gift, sessionID string) Result {
	if sessionID == "" {
		return pending(gift, ReasonNoCheckout, nil)
	}

	cs, err := s.stripe.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("confirm: gateway lookup failed",
			"gift_id", gift.ID,
			"session_id", sessionID,
			"error", err,
		)
		return pending(gift, ReasonGatewayUnavailable, err)
	}

	if !cs.IsPaid() {
		return pending(gift, pendingReason(cs), nil)
	}

	// A paid session replayed against an unrelated gift must not unlock it.
	if cs.GiftID() != gift.ID.String() {
		s.logger.Warn("confirm: session belongs to another gift",
			"gift_id", gift.ID,
			"session_id", cs.ID,
			"metadata_gift_id", cs.GiftID(),
		)
		return resultFor(gift, OutcomeMismatch)
	}

	return s.transition(ctx, gift, cs)
}

// transition runs the conditional UPDATE. Exactly one concurrent caller sees
// a row come back; every other caller reloads and reports the winner's state.
func (s *Service) transition(ctx context.Context, gift db.Gift, cs stripeinternal.CheckoutSession) Result {
	params := db.MarkGiftPaidParams{
		ID:               gift.ID,
		PaidAt:           s.now().UTC(),
		PaymentReference: cs.Reference(),
	}
	if cs.CustomerEmail != "" {
		params.BuyerEmail = sql.NullString{String: cs.CustomerEmail, Valid: true}
	}

	updated, err := s.q.MarkGiftPaid(ctx, params)
	if errors.Is(err, sql.ErrNoRows) {
		return s.afterLostRace(ctx, gift)
	}
	if err != nil {
		s.logger.Error("confirm: mark gift paid", "gift_id", gift.ID, "error", err)
		return pending(gift, ReasonStorageUnavailable, fmt.Errorf("mark gift paid: %w", err))
	}

	s.logger.Info("gift paid",
		"gift_id", updated.ID,
		"payment_reference", params.PaymentReference,
	)
	s.sendReceipt(ctx, updated)

	return resultFor(updated, OutcomeConfirmed)
}

// afterLostRace reloads a gift whose guarded UPDATE matched nothing.
func (s *Service) afterLostRace(ctx context.Context, gift db.Gift) Result {
	current, err := s.q.GetGiftByID(ctx, gift.ID)
	if err != nil {
		return pending(gift, ReasonStorageUnavailable, fmt.Errorf("reload after lost race: %w", err))
	}
	switch current.Status {
	case db.GiftStatusPaid:
		return resultFor(current, OutcomeAlreadyPaid)
	case db.GiftStatusDisabled:
		return resultFor(current, OutcomeGone)
	default:
		return pending(current, ReasonStorageUnavailable, errors.New("guarded update matched no row"))
	}
}

// sendReceipt is best-effort: a failed email never undoes a payment.
func (s *Service) sendReceipt(ctx context.Context, gift db.Gift) {
	if !gift.BuyerEmail.Valid || gift.BuyerEmail.String == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), receiptTimeout)
	defer cancel()

	err := s.mailer.SendGiftReady(ctx, email.GiftReadyParams{
		To:          gift.BuyerEmail.String,
		ShareURL:    ShareURL(s.cfg.PublicAppURL, gift.Slug),
		Phrase:      gift.Phrase.String,
		AmountCents: s.cfg.AmountCents,
		Currency:    s.cfg.Currency,
	})
	if err != nil {
		s.logger.Warn("confirm: receipt email failed", "gift_id", gift.ID, "error", err)
	}
}

func confirmsPayment(eventType string) bool {
	return eventType == stripeinternal.EventCheckoutCompleted ||
		eventType == stripeinternal.EventAsyncPaymentSucceeded
}

func pendingReason(cs stripeinternal.CheckoutSession) string {
	switch cs.Status {
	case stripeinternal.SessionStatusComplete:
		return ReasonPaymentProcessing
	case stripeinternal.SessionStatusExpired:
		return ReasonSessionExpired
	default:
		return ReasonAwaitingPayment
	}
}
