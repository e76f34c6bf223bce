// Package store wraps db.Querier and groups the buyer-side gift writes that
// need more than a bare query: slug generation with collision retry, and
// translating a guarded UPDATE that matched nothing into a sentinel error the
// handlers can map to a status code.
//
// The payment transition itself (draft → paid) is not here. It belongs to the
// lifecycle package, which calls db.Querier.MarkGiftPaid directly.
//
// Dependency rule: store imports db and slug only.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nyashahama/lovewheel-backend/internal/db"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrGiftNotFound is returned when the gift id does not exist.
var ErrGiftNotFound = errors.New("store: gift not found")

// ErrGiftNotDraft is returned when a buyer-side write targets a gift that is
// already paid or disabled. Content is frozen once payment is confirmed.
var ErrGiftNotDraft = errors.New("store: gift is no longer a draft")

// ErrSlugExhausted is returned when every slug attempt collided. With 72 bits
// of entropy this signals a broken random source rather than bad luck.
var ErrSlugExhausted = errors.New("store: could not allocate a unique slug")

// Store holds the Querier used for all gift writes.
type Store struct {
	q db.Querier
}

// New creates a Store over q (a *db.Queries in production).
func New(q db.Querier) *Store {
	return &Store{q: q}
}

// Q exposes the underlying Querier for single-query reads.
//
//	gift, err := s.Q().GetGiftBySlug(ctx, slug)
func (s *Store) Q() db.Querier {
	return s.q
}

// classifyGuardMiss runs after a status-guarded UPDATE returned no row. It
// re-reads the gift to tell "missing" apart from "not a draft any more".
func (s *Store) classifyGuardMiss(ctx context.Context, id uuid.UUID, op string) error {
	_, err := s.q.GetGiftByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGiftNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: reload gift: %w", op, err)
	}
	return ErrGiftNotDraft
}
