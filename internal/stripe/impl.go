package stripe

import (
	"context"
	"fmt"

	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeClient is the concrete implementation of Client backed by the
// official stripe-go SDK. Construct it with NewClient.
type stripeClient struct {
	secretKey string
}

// NewClient returns a Client backed by the Stripe SDK.
// secretKey is your STRIPE_SECRET_KEY env var.
func NewClient(secretKey string) Client {
	return &stripeClient{secretKey: secretKey}
}

// CreateCheckoutSession creates a one-item Checkout Session in payment mode.
// The gift id is written both to the session metadata and to the metadata of
// the PaymentIntent Stripe creates behind it, so either object can be traced
// back to the gift from the dashboard.
func (c *stripeClient) CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams) (CheckoutSession, error) {
	stripesdk.Key = c.secretKey

	params := &stripesdk.CheckoutSessionParams{
		Mode:              stripesdk.String(string(stripesdk.CheckoutSessionModePayment)),
		SuccessURL:        stripesdk.String(p.SuccessURL),
		CancelURL:         stripesdk.String(p.CancelURL),
		ClientReferenceID: stripesdk.String(p.GiftID),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{
			{
				PriceData: &stripesdk.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripesdk.String(p.Currency),
					UnitAmount: stripesdk.Int64(p.AmountCents),
					ProductData: &stripesdk.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripesdk.String(p.ProductName),
					},
				},
				Quantity: stripesdk.Int64(1),
			},
		},
		Metadata: map[string]string{
			MetadataGiftID: p.GiftID,
		},
		PaymentIntentData: &stripesdk.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				MetadataGiftID: p.GiftID,
			},
		},
	}
	// Propagate context deadline to the Stripe HTTP call.
	params.Context = ctx

	cs, err := session.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	return fromSDK(cs), nil
}

// GetCheckoutSession retrieves the current state of a Checkout Session.
func (c *stripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	stripesdk.Key = c.secretKey

	params := &stripesdk.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := session.Get(sessionID, params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: get checkout session %s: %w", sessionID, err)
	}

	return fromSDK(cs), nil
}

// VerifyWebhook validates the Stripe-Signature header and returns the parsed
// event. Returns an error if the signature is invalid or the tolerance window
// (300 seconds by default in the Stripe SDK) has expired. The account's API
// version may differ from the SDK's pinned version; only data.object fields
// this service reads are relied upon, so the version check is skipped.
func (c *stripeClient) VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("stripe: webhook verification failed: %w", err)
	}

	return Event{
		ID:      stripeEvent.ID,
		Type:    string(stripeEvent.Type),
		DataRaw: stripeEvent.Data.Raw,
	}, nil
}
