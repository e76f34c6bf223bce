package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
)

// Confirmer is the slice of lifecycle.Service the reconciler needs.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, ref string, ev lifecycle.Evidence) lifecycle.Result
}

// Job checks one draft gift's latest checkout session against Stripe. It is
// the server-side fallback for webhooks that never arrived: the session is
// always looked up at the gateway, never assumed paid.
type Job struct {
	confirmer Confirmer
	logger    *slog.Logger
}

// NewJob constructs a Job.
func NewJob(confirmer Confirmer, logger *slog.Logger) *Job {
	return &Job{
		confirmer: confirmer,
		logger:    logger,
	}
}

// Run reconciles a single gift. Only transient failures (gateway or storage)
// are returned, so the Runner retries those and nothing else. An unpaid
// session is not an error; the next poll will look again.
func (j *Job) Run(ctx context.Context, gift db.Gift) error {
	log := j.logger.With("gift_id", gift.ID)

	if !gift.CheckoutSessionID.Valid || gift.CheckoutSessionID.String == "" {
		log.Debug("job: gift has no checkout session, skipping")
		return nil
	}

	res := j.confirmer.ConfirmPayment(ctx, gift.ID.String(), lifecycle.Session(gift.CheckoutSessionID.String))
	if res.Retryable() {
		return fmt.Errorf("job: confirm gift %s: %w", gift.ID, res.Cause)
	}

	switch res.Outcome {
	case lifecycle.OutcomeConfirmed:
		log.Info("job: recovered payment without webhook", "payment_reference", res.PaymentReference)
	case lifecycle.OutcomeMismatch:
		log.Warn("job: stored session belongs to another gift", "session_id", gift.CheckoutSessionID.String)
	default:
		log.Debug("job: reconciled", "outcome", res.Outcome, "reason", res.Reason)
	}
	return nil
}
