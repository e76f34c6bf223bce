// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation plus a log-only fallback.
package email

import (
	"context"
	"log/slog"
)

// GiftReadyParams holds the data for the email sent once a gift is paid.
type GiftReadyParams struct {
	To          string // buyer email address captured at checkout
	ShareURL    string // public link the buyer sends to the recipient
	Phrase      string // used in the subject line; may be empty
	AmountCents int64  // e.g. 900 for $9.00
	Currency    string // e.g. "usd"
}

// Sender is the interface the lifecycle core uses to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	// SendGiftReady sends the payment receipt together with the share link.
	// Called once per gift, by the caller whose transition to paid won.
	SendGiftReady(ctx context.Context, p GiftReadyParams) error
}

// logSender is used when no Resend API key is configured. It writes the
// message to the log instead of delivering it, which keeps local development
// and staging free of real email.
type logSender struct {
	logger *slog.Logger
}

// NewLogSender returns a Sender that only logs.
func NewLogSender(logger *slog.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) SendGiftReady(_ context.Context, p GiftReadyParams) error {
	s.logger.Info("email: gift ready (not delivered, no provider configured)",
		"to", p.To,
		"share_url", p.ShareURL,
	)
	return nil
}
