package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
	"github.com/nyashahama/lovewheel-backend/internal/slug"
)

// QR image bounds in pixels.
const (
	qrDefaultSize = 256
	qrMinSize     = 128
	qrMaxSize     = 1024
)

// ─── GET /api/public/{slug} ───────────────────────────────────────────────────

// handleGetPublic serves the recipient's view. Responses are never cached so
// a gift that was just paid or disabled is seen immediately.
func (s *Server) handleGetPublic(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	gift, err := s.core.LoadPublic(r.Context(), chi.URLParam(r, "slug"))
	switch {
	case err == nil:
		respond(w, http.StatusOK, gift)
	case errors.Is(err, lifecycle.ErrPaymentRequired):
		respondErr(w, http.StatusPaymentRequired, "payment required")
	case errors.Is(err, lifecycle.ErrGone):
		respondErr(w, http.StatusGone, "gift has been removed")
	case errors.Is(err, lifecycle.ErrNotFound):
		respondErr(w, http.StatusNotFound, "gift not found")
	default:
		s.respondInternalErr(w, r, err)
	}
}

// ─── GET /api/public/{slug}/qr.png ────────────────────────────────────────────

// handleGetQR renders the share link as a PNG QR code. Optional ?size= in
// pixels, clamped to [128, 1024].
func (s *Server) handleGetQR(w http.ResponseWriter, r *http.Request) {
	giftSlug := chi.URLParam(r, "slug")
	if !slug.Valid(giftSlug) {
		respondErr(w, http.StatusNotFound, "gift not found")
		return
	}

	gift, err := s.store.Q().GetGiftBySlug(r.Context(), giftSlug)
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "gift not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get gift for qr: %w", err))
		return
	}
	if gift.Status == db.GiftStatusDisabled {
		respondErr(w, http.StatusGone, "gift has been removed")
		return
	}

	size := qrDefaultSize
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil {
		size = min(max(v, qrMinSize), qrMaxSize)
	}

	png, err := qrcode.Encode(lifecycle.ShareURL(s.cfg.PublicAppURL, gift.Slug), qrcode.Medium, size)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("encode qr: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
