// Package stripe defines the interface for Stripe Checkout calls and webhook
// verification, and provides helpers used by the lifecycle and api packages.
package stripe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	stripesdk "github.com/stripe/stripe-go/v82"

	"github.com/nyashahama/lovewheel-backend/internal/db"
)

// MetadataGiftID is the metadata key that binds a checkout session (and its
// PaymentIntent) to the gift that started it.
const MetadataGiftID = "gift_id"

// Webhook event types the service reacts to.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired       = "checkout.session.expired"
)

// Session and payment states reported by Checkout.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"

	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// CreateCheckoutSessionParams holds the inputs for a hosted checkout.
type CreateCheckoutSessionParams struct {
	GiftID      string
	AmountCents int64
	Currency    string
	ProductName string
	SuccessURL  string // may contain the {CHECKOUT_SESSION_ID} placeholder
	CancelURL   string
}

// CheckoutSession is the subset of a Stripe Checkout Session callers need.
type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string // empty until the session has a PaymentIntent
	CustomerEmail   string
	Metadata        map[string]string
}

// GiftID returns the gift id recorded in the session metadata, or "".
func (s CheckoutSession) GiftID() string {
	return s.Metadata[MetadataGiftID]
}

// IsPaid reports whether the session is complete and fully paid. Sessions that
// are complete but still settling an asynchronous method report "unpaid" and
// are not paid; "no_payment_required" is not treated as paid either.
func (s CheckoutSession) IsPaid() bool {
	return s.Status == SessionStatusComplete && s.PaymentStatus == PaymentStatusPaid
}

// Reference is the transaction id stored on the gift: the PaymentIntent id
// when present, otherwise the session id.
func (s CheckoutSession) Reference() string {
	if s.PaymentIntentID != "" {
		return s.PaymentIntentID
	}
	return s.ID
}

// Event is a verified Stripe webhook event. DataRaw contains the raw JSON of
// the event's data.object so handlers can unmarshal only what they need.
type Event struct {
	ID      string
	Type    string
	DataRaw json.RawMessage
}

// ─── CLIENT INTERFACE ─────────────────────────────────────────────────────────

// Client is the interface the lifecycle and api packages use for all Stripe
// calls. The concrete implementation wraps the official stripe-go SDK.
// Tests inject a stub.
type Client interface {
	// CreateCheckoutSession creates a hosted payment page for one gift.
	CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams) (CheckoutSession, error)

	// GetCheckoutSession retrieves a session by id.
	GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error)

	// VerifyWebhook validates the Stripe-Signature header and returns the
	// parsed event. Returns an error if the signature is invalid or expired.
	VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error)
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

// SessionFromEvent decodes the checkout session carried by a checkout.session.*
// event.
func SessionFromEvent(event Event) (CheckoutSession, error) {
	var cs stripesdk.CheckoutSession
	if err := json.Unmarshal(event.DataRaw, &cs); err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: unmarshal checkout session: %w", err)
	}
	if cs.ID == "" {
		return CheckoutSession{}, fmt.Errorf("stripe: checkout session id is empty in event %s", event.ID)
	}
	return fromSDK(&cs), nil
}

func fromSDK(cs *stripesdk.CheckoutSession) CheckoutSession {
	out := CheckoutSession{
		ID:            cs.ID,
		URL:           cs.URL,
		Status:        string(cs.Status),
		PaymentStatus: string(cs.PaymentStatus),
		CustomerEmail: cs.CustomerEmail,
		Metadata:      cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		out.CustomerEmail = cs.CustomerDetails.Email
	}
	return out
}

// ToUpsertParams converts a verified Event and its raw payload into the params
// for db.Querier.UpsertStripeEvent.
func ToUpsertParams(event Event, rawPayload []byte) db.UpsertStripeEventParams {
	return db.UpsertStripeEventParams{
		StripeEventID: event.ID,
		Type:          event.Type,
		Payload:       json.RawMessage(rawPayload),
	}
}

// ToMarkFailedParams builds the params for db.Querier.MarkStripeEventFailed.
func ToMarkFailedParams(eventID string, err error) db.MarkStripeEventFailedParams {
	return db.MarkStripeEventFailedParams{
		StripeEventID: eventID,
		Error:         sql.NullString{String: err.Error(), Valid: true},
	}
}
