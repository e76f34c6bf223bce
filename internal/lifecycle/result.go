package lifecycle

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/lovewheel-backend/internal/db"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned for an unknown gift id or slug.
	ErrNotFound = errors.New("lifecycle: gift not found")

	// ErrInvalidSignature is returned when a webhook payload fails
	// verification. The request is rejected and never retried server-side.
	ErrInvalidSignature = errors.New("lifecycle: invalid webhook signature")

	// ErrSessionGiftMismatch is returned when a paid session belongs to a
	// different gift than the one it was presented for.
	ErrSessionGiftMismatch = errors.New("lifecycle: checkout session belongs to another gift")

	// ErrPending means payment is not confirmed yet. Callers retry.
	ErrPending = errors.New("lifecycle: payment pending")

	// ErrGone is returned for a disabled gift.
	ErrGone = errors.New("lifecycle: gift disabled")

	// ErrPaymentRequired is returned by LoadPublic for a draft gift.
	ErrPaymentRequired = errors.New("lifecycle: payment required")
)

// ─── EVIDENCE ────────────────────────────────────────────────────────────────

// EvidenceKind tags the variants of Evidence.
type EvidenceKind int

const (
	EvidenceNone EvidenceKind = iota
	EvidenceWebhook
	EvidenceSession
)

// Evidence is what a caller presents to prove a payment.
type Evidence struct {
	Kind      EvidenceKind
	Payload   []byte // raw webhook body, EvidenceWebhook only
	Signature string // Stripe-Signature header, EvidenceWebhook only
	SessionID string // EvidenceSession only
}

// Webhook wraps a signed webhook delivery.
func Webhook(payload []byte, signature string) Evidence {
	return Evidence{Kind: EvidenceWebhook, Payload: payload, Signature: signature}
}

// Session wraps a checkout session id obtained from the success redirect or
// from the gift's stored checkout reference.
func Session(id string) Evidence {
	return Evidence{Kind: EvidenceSession, SessionID: id}
}

// NoEvidence asks only for the stored status.
func NoEvidence() Evidence {
	return Evidence{Kind: EvidenceNone}
}

// ─── RESULT ──────────────────────────────────────────────────────────────────

// Outcome is the closed set of confirmation results.
type Outcome string

const (
	OutcomeAlreadyPaid      Outcome = "already_paid"
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomePending          Outcome = "pending"
	OutcomeMismatch         Outcome = "mismatch"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeGone             Outcome = "gone"
)

// Pending reasons.
const (
	// ReasonAwaitingPayment: no evidence given, or the session is still open.
	ReasonAwaitingPayment = "awaiting_payment"
	// ReasonPaymentProcessing: checkout complete, funds not settled yet.
	ReasonPaymentProcessing = "payment_processing"
	// ReasonSessionExpired: the buyer abandoned checkout.
	ReasonSessionExpired = "session_expired"
	// ReasonEventNotConfirming: a verified event of a type that never unlocks.
	ReasonEventNotConfirming = "event_not_confirming"
	// ReasonNoCheckout: sync requested before checkout was started.
	ReasonNoCheckout         = "no_checkout_session"
	ReasonGatewayUnavailable = "gateway_unavailable"
	ReasonStorageUnavailable = "storage_unavailable"
)

// Result is the answer of ConfirmPayment.
type Result struct {
	Outcome          Outcome
	GiftID           uuid.UUID
	Slug             string
	Status           db.GiftStatus
	PaidAt           time.Time // set for Confirmed and AlreadyPaid
	PaymentReference string    // set for Confirmed and AlreadyPaid
	Reason           string    // set for Pending

	// Cause is the infrastructure error behind a Pending result, if any.
	// A non-nil Cause means the same call may succeed on retry.
	Cause error
}

// Paid reports whether the gift is paid after this call.
func (r Result) Paid() bool {
	return r.Outcome == OutcomeConfirmed || r.Outcome == OutcomeAlreadyPaid
}

// Retryable reports whether the Pending result came from a transient failure.
func (r Result) Retryable() bool {
	return r.Outcome == OutcomePending && r.Cause != nil
}

// Err maps the outcome to its sentinel error. Paid outcomes return nil.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeConfirmed, OutcomeAlreadyPaid:
		return nil
	case OutcomeNotFound:
		return ErrNotFound
	case OutcomeInvalidSignature:
		return ErrInvalidSignature
	case OutcomeMismatch:
		return ErrSessionGiftMismatch
	case OutcomeGone:
		return ErrGone
	default:
		return ErrPending
	}
}

func resultFor(g db.Gift, outcome Outcome) Result {
	r := Result{
		Outcome: outcome,
		GiftID:  g.ID,
		Slug:    g.Slug,
		Status:  g.Status,
	}
	if g.PaidAt.Valid {
		r.PaidAt = g.PaidAt.Time
	}
	if g.PaymentReference.Valid {
		r.PaymentReference = g.PaymentReference.String
	}
	return r
}

func pending(g db.Gift, reason string, cause error) Result {
	r := resultFor(g, OutcomePending)
	r.Reason = reason
	r.Cause = cause
	return r
}
