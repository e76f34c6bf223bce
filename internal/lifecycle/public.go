package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/slug"
)

// PublicGift is everything the recipient's wheel can reveal.
type PublicGift struct {
	Slug              string    `json:"slug"`
	Phrase            string    `json:"phrase"`
	RelationshipStart string    `json:"relationship_start,omitempty"` // YYYY-MM-DD
	DaysTogether      int       `json:"days_together"`
	Letter            string    `json:"letter"`
	PhotoURL          string    `json:"photo_url,omitempty"`
	PaidAt            time.Time `json:"paid_at"`
}

// LoadPublic is the read guard for the share link. It never writes.
//
// Order matters: disabled is checked before paid, so a disabled gift is gone
// even though it still carries paid_at. A draft returns ErrPaymentRequired and
// none of its content.
func (s *Service) LoadPublic(ctx context.Context, giftSlug string) (PublicGift, error) {
	if !slug.Valid(giftSlug) {
		return PublicGift{}, ErrNotFound
	}
	gift, err := s.lookup(s.q.GetGiftBySlug(ctx, giftSlug))
	if errors.Is(err, ErrNotFound) {
		return PublicGift{}, ErrNotFound
	}
	if err != nil {
		return PublicGift{}, fmt.Errorf("LoadPublic: %w", err)
	}

	switch gift.Status {
	case db.GiftStatusDisabled:
		return PublicGift{}, ErrGone
	case db.GiftStatusDraft:
		return PublicGift{}, ErrPaymentRequired
	case db.GiftStatusPaid:
	default:
		return PublicGift{}, ErrNotFound
	}

	out := PublicGift{
		Slug:     gift.Slug,
		Phrase:   gift.Phrase.String,
		Letter:   gift.Letter.String,
		PhotoURL: gift.PhotoUrl.String,
		PaidAt:   gift.PaidAt.Time,
	}
	if gift.RelationshipStart.Valid {
		out.RelationshipStart = gift.RelationshipStart.Time.Format(time.DateOnly)
		out.DaysTogether = DaysBetween(gift.RelationshipStart.Time, s.now())
	}
	return out, nil
}

// DaysBetween counts whole calendar days from start to now, never negative.
func DaysBetween(start, now time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if n.Before(s) {
		return 0
	}
	return int(n.Sub(s).Hours() / 24)
}
