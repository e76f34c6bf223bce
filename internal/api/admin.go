package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nyashahama/lovewheel-backend/internal/slug"
	"github.com/nyashahama/lovewheel-backend/internal/store"
)

type disableResponse struct {
	ID         string     `json:"id"`
	Slug       string     `json:"slug"`
	Status     string     `json:"status"`
	DisabledAt *time.Time `json:"disabled_at,omitempty"`
}

// ─── POST /api/admin/gifts/{ref}/disable ──────────────────────────────────────

// handleDisableGift takes a gift offline (abuse reports, refunds). The share
// link returns 410 from then on. Repeating the call is harmless.
func (s *Server) handleDisableGift(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolveGiftID(w, r, chi.URLParam(r, "ref"))
	if !ok {
		return
	}

	gift, err := s.store.Disable(r.Context(), id)
	if errors.Is(err, store.ErrGiftNotFound) {
		respondErr(w, http.StatusNotFound, "gift not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("disable gift: %w", err))
		return
	}

	s.logger.Info("admin: gift disabled", "gift_id", gift.ID, logField(r))
	respond(w, http.StatusOK, disableResponse{
		ID:         gift.ID.String(),
		Slug:       gift.Slug,
		Status:     string(gift.Status),
		DisabledAt: timePtr(gift.DisabledAt),
	})
}

// resolveGiftID accepts a UUID or a slug. It writes the error response and
// returns false when the gift cannot be found.
func (s *Server) resolveGiftID(w http.ResponseWriter, r *http.Request, ref string) (uuid.UUID, bool) {
	if id, err := parseUUID(ref); err == nil {
		return id, true
	}
	if !slug.Valid(ref) {
		respondErr(w, http.StatusNotFound, "gift not found")
		return uuid.Nil, false
	}

	gift, err := s.store.Q().GetGiftBySlug(r.Context(), ref)
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "gift not found")
		return uuid.Nil, false
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get gift by slug: %w", err))
		return uuid.Nil, false
	}
	return gift.ID, true
}
