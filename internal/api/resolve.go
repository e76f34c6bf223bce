package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
)

// confirmationResponse is the body of resolve (with a session id) and sync.
type confirmationResponse struct {
	Result           lifecycle.Outcome `json:"result"`
	Status           string            `json:"status,omitempty"`
	Slug             string            `json:"slug,omitempty"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	Reason           string            `json:"reason,omitempty"`
}

// existsResponse is the bare acknowledgement returned without a session id.
type existsResponse struct {
	Exists bool   `json:"exists"`
	ID     string `json:"id,omitempty"`
	Slug   string `json:"slug,omitempty"`
	Status string `json:"status,omitempty"`
}

// ─── GET /api/gifts/{giftRef}/resolve ─────────────────────────────────────────

// handleResolve is called by the checkout success page. Without session_id
// it only acknowledges that the gift exists, which lets a "preparing
// checkout" screen move on. With session_id it confirms the payment against
// Stripe. The browser polls this with a bounded number of attempts.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "giftRef")
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	if sessionID == "" {
		res := s.core.ConfirmPayment(r.Context(), ref, lifecycle.NoEvidence())
		switch {
		case res.Outcome == lifecycle.OutcomeNotFound:
			respond(w, http.StatusNotFound, existsResponse{Exists: false})
		case res.Outcome == lifecycle.OutcomeGone:
			respondErr(w, http.StatusGone, "gift has been removed")
		case res.Retryable():
			respondErr(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry")
		default:
			respond(w, http.StatusOK, existsResponse{
				Exists: true,
				ID:     res.GiftID.String(),
				Slug:   res.Slug,
				Status: string(res.Status),
			})
		}
		return
	}

	res := s.core.ConfirmPayment(r.Context(), ref, lifecycle.Session(sessionID))
	s.respondConfirmation(w, r, res)
}

// ─── POST /api/gifts/{giftRef}/sync ───────────────────────────────────────────

// handleSync re-checks the gift's stored checkout session with Stripe. It is
// the buyer-triggered fallback when the webhook is late; it never marks a
// gift paid without Stripe saying so.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	gift := giftFromContext(r.Context())
	res := s.core.ConfirmPayment(r.Context(), gift.ID.String(), lifecycle.Session(gift.CheckoutSessionID.String))
	s.respondConfirmation(w, r, res)
}

// respondConfirmation maps a confirmation result onto an HTTP status.
func (s *Server) respondConfirmation(w http.ResponseWriter, r *http.Request, res lifecycle.Result) {
	body := confirmationResponse{
		Result: res.Outcome,
		Status: string(res.Status),
		Slug:   res.Slug,
		Reason: res.Reason,
	}
	if res.Paid() {
		paidAt := res.PaidAt
		body.PaidAt = &paidAt
		body.PaymentReference = res.PaymentReference
	}

	status := http.StatusOK
	switch res.Outcome {
	case lifecycle.OutcomeConfirmed, lifecycle.OutcomeAlreadyPaid:
		status = http.StatusOK
	case lifecycle.OutcomePending:
		status = http.StatusAccepted
	case lifecycle.OutcomeMismatch:
		s.logger.Warn("resolve: session does not belong to gift", "gift_id", res.GiftID, logField(r))
		status = http.StatusConflict
	case lifecycle.OutcomeNotFound:
		status = http.StatusNotFound
	case lifecycle.OutcomeGone:
		status = http.StatusGone
	case lifecycle.OutcomeInvalidSignature:
		status = http.StatusBadRequest
	}

	respond(w, status, body)
}
