package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/slug"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// CreateGiftParams holds the optional content a buyer may send with the very
// first request. Everything can be filled in later while the gift is a draft.
type CreateGiftParams struct {
	Phrase            sql.NullString
	RelationshipStart sql.NullTime
	Letter            sql.NullString
}

// maxSlugAttempts bounds the collision retry loop in CreateGift.
const maxSlugAttempts = 5

// slugConstraint is the unique index name Postgres reports on a slug clash.
const slugConstraint = "gifts_slug_key"

// ─── METHODS ─────────────────────────────────────────────────────────────────

// CreateGift inserts a new draft with a fresh id, slug and edit token. A slug
// collision (unique violation on gifts_slug_key) is retried with a new slug;
// any other error is returned immediately.
func (s *Store) CreateGift(ctx context.Context, p CreateGiftParams) (db.Gift, error) {
	editToken, err := slug.NewEditToken()
	if err != nil {
		return db.Gift{}, fmt.Errorf("CreateGift: %w", err)
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		sl, err := slug.New()
		if err != nil {
			return db.Gift{}, fmt.Errorf("CreateGift: %w", err)
		}

		gift, err := s.q.CreateGift(ctx, db.CreateGiftParams{
			ID:                uuid.New(),
			Slug:              sl,
			EditToken:         editToken,
			Phrase:            p.Phrase,
			RelationshipStart: p.RelationshipStart,
			Letter:            p.Letter,
		})
		if isSlugCollision(err) {
			continue
		}
		if err != nil {
			return db.Gift{}, fmt.Errorf("CreateGift: insert: %w", err)
		}
		return gift, nil
	}

	return db.Gift{}, ErrSlugExhausted
}

// UpdateContent overwrites the non-NULL content fields of a draft gift.
func (s *Store) UpdateContent(ctx context.Context, p db.UpdateGiftContentParams) (db.Gift, error) {
	gift, err := s.q.UpdateGiftContent(ctx, p)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Gift{}, s.classifyGuardMiss(ctx, p.ID, "UpdateContent")
	}
	if err != nil {
		return db.Gift{}, fmt.Errorf("UpdateContent: %w", err)
	}
	return gift, nil
}

// SetPhoto records the stored cover image of a draft gift. The storage key is
// derived from the gift id, so a re-upload replaces the previous photo.
func (s *Store) SetPhoto(ctx context.Context, p db.SetGiftPhotoParams) (db.Gift, error) {
	gift, err := s.q.SetGiftPhoto(ctx, p)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Gift{}, s.classifyGuardMiss(ctx, p.ID, "SetPhoto")
	}
	if err != nil {
		return db.Gift{}, fmt.Errorf("SetPhoto: %w", err)
	}
	return gift, nil
}

// AttachCheckoutSession stores the latest checkout session created for a
// draft. A buyer who opens checkout twice simply replaces the reference: the
// older session can still complete, and the webhook binds it to the gift
// through its metadata rather than through this column.
func (s *Store) AttachCheckoutSession(ctx context.Context, giftID uuid.UUID, sessionID string, startedAt time.Time) (db.Gift, error) {
	gift, err := s.q.AttachCheckoutSession(ctx, db.AttachCheckoutSessionParams{
		ID:                giftID,
		CheckoutSessionID: sessionID,
		StartedAt:         startedAt,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return db.Gift{}, s.classifyGuardMiss(ctx, giftID, "AttachCheckoutSession")
	}
	if err != nil {
		return db.Gift{}, fmt.Errorf("AttachCheckoutSession: %w", err)
	}
	return gift, nil
}

// Disable soft-deletes a gift. It is idempotent and valid from any state.
func (s *Store) Disable(ctx context.Context, giftID uuid.UUID) (db.Gift, error) {
	gift, err := s.q.DisableGift(ctx, giftID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Gift{}, ErrGiftNotFound
	}
	if err != nil {
		return db.Gift{}, fmt.Errorf("Disable: %w", err)
	}
	return gift, nil
}

func isSlugCollision(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == slugConstraint
}
