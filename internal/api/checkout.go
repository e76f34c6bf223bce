package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/store"
	stripeinternal "github.com/nyashahama/lovewheel-backend/internal/stripe"
)

// ─── POST /api/gifts/{giftRef}/checkout ───────────────────────────────────────

type createCheckoutResponse struct {
	SessionID string `json:"session_id"`
	// URL is the Stripe-hosted payment page the browser redirects to.
	URL string `json:"url"`
}

// handleCreateCheckout creates a Stripe Checkout Session for a complete draft.
//
// Opening checkout twice creates a second session and replaces the stored
// reference. Both sessions carry the gift id in their metadata, so whichever
// one is paid confirms the gift, and the guarded transition makes a double
// payment unlock it only once.
func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	gift := giftFromContext(r.Context())

	switch gift.Status {
	case db.GiftStatusPaid:
		respondErr(w, http.StatusConflict, "already_paid")
		return
	case db.GiftStatusDisabled:
		respondErr(w, http.StatusGone, "gift has been removed")
		return
	}

	if err := s.validate.Struct(readinessOf(gift)); err != nil {
		respondValidation(w, err, "gift is incomplete")
		return
	}

	cs, err := s.stripe.CreateCheckoutSession(r.Context(), stripeinternal.CreateCheckoutSessionParams{
		GiftID:      gift.ID.String(),
		AmountCents: s.cfg.PriceCents,
		Currency:    s.cfg.Currency,
		ProductName: s.cfg.ProductName,
		SuccessURL:  s.successURL(gift),
		CancelURL:   s.cancelURL(gift),
	})
	if err != nil {
		s.logger.Error("checkout: stripe create session failed", "gift_id", gift.ID, "error", err, logField(r))
		respondErr(w, http.StatusBadGateway, "payment provider unavailable, please retry")
		return
	}

	_, err = s.store.AttachCheckoutSession(r.Context(), gift.ID, cs.ID, time.Now())
	if errors.Is(err, store.ErrGiftNotDraft) {
		// Paid or disabled between the check above and now. The new session
		// simply expires unused.
		respondErr(w, http.StatusConflict, "already_paid")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("attach checkout session: %w", err))
		return
	}

	s.logger.Info("checkout: session created", "gift_id", gift.ID, "session_id", cs.ID, logField(r))
	respond(w, http.StatusOK, createCheckoutResponse{
		SessionID: cs.ID,
		URL:       cs.URL,
	})
}

func readinessOf(g db.Gift) checkoutReadiness {
	out := checkoutReadiness{
		Phrase: g.Phrase.String,
		Letter: g.Letter.String,
		Photo:  g.PhotoUrl.String,
	}
	if g.RelationshipStart.Valid {
		out.RelationshipStart = g.RelationshipStart.Time.Format(time.DateOnly)
	}
	return out
}

// successURL is where Stripe sends the buyer after paying. Stripe replaces
// the literal {CHECKOUT_SESSION_ID}, so it must not be URL-escaped.
func (s *Server) successURL(g db.Gift) string {
	return fmt.Sprintf("%s/checkout/success?gift=%s&session_id={CHECKOUT_SESSION_ID}",
		strings.TrimRight(s.cfg.PublicAppURL, "/"), url.QueryEscape(g.ID.String()))
}

func (s *Server) cancelURL(g db.Gift) string {
	return fmt.Sprintf("%s/create?gift=%s&canceled=1",
		strings.TrimRight(s.cfg.PublicAppURL, "/"), url.QueryEscape(g.ID.String()))
}
