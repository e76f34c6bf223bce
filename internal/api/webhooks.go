package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
// Verification, idempotency and dispatch live in lifecycle.HandleWebhook; this
// handler only reads the raw body and maps the outcome to a status code.
//
// The events that can unlock a gift are:
//   - checkout.session.completed                → paid card payments
//   - checkout.session.async_payment_succeeded  → delayed methods settling
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// Read the raw body before any other processing so the signature check
	// runs against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536) // 64 KB, generous for any Stripe event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	err = s.core.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, lifecycle.ErrInvalidSignature):
		s.logger.Warn("webhook: rejected", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "invalid webhook signature")
	default:
		// 500 so Stripe retries delivery.
		s.logger.Error("webhook: handler failed", "error", err, logField(r))
		respondErr(w, http.StatusInternalServerError, "webhook handler failed")
	}
}
