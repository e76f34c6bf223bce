package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
	"github.com/nyashahama/lovewheel-backend/internal/store"
)

// giftView is the buyer's view of their own gift. It never includes the edit
// token, which is only returned once at creation.
type giftView struct {
	ID                string     `json:"id"`
	Slug              string     `json:"slug"`
	Status            string     `json:"status"`
	ShareURL          string     `json:"share_url"`
	Phrase            string     `json:"phrase,omitempty"`
	RelationshipStart string     `json:"relationship_start,omitempty"`
	Letter            string     `json:"letter,omitempty"`
	PhotoURL          string     `json:"photo_url,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	PaymentReference  string     `json:"payment_reference,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (s *Server) viewOf(g db.Gift) giftView {
	v := giftView{
		ID:               g.ID.String(),
		Slug:             g.Slug,
		Status:           string(g.Status),
		ShareURL:         lifecycle.ShareURL(s.cfg.PublicAppURL, g.Slug),
		Phrase:           g.Phrase.String,
		Letter:           g.Letter.String,
		PhotoURL:         g.PhotoUrl.String,
		PaidAt:           timePtr(g.PaidAt),
		PaymentReference: g.PaymentReference.String,
		CreatedAt:        g.CreatedAt,
	}
	if g.RelationshipStart.Valid {
		v.RelationshipStart = g.RelationshipStart.Time.Format(time.DateOnly)
	}
	return v
}

// ─── POST /api/gifts ──────────────────────────────────────────────────────────

type createGiftResponse struct {
	giftView
	// EditToken authorises every later change to this gift. It is shown once;
	// the browser keeps it and sends it as X-Edit-Token.
	EditToken string `json:"edit_token"`
}

// handleCreateGift creates an empty or partly filled draft. Called when the
// buyer starts the form; the remaining steps PATCH the same gift.
func (s *Server) handleCreateGift(w http.ResponseWriter, r *http.Request) {
	var req giftContentRequest
	if !decode(w, r, &req) {
		return
	}
	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		respondValidation(w, err, "invalid gift content")
		return
	}

	gift, err := s.store.CreateGift(r.Context(), store.CreateGiftParams{
		Phrase:            optString(req.Phrase),
		RelationshipStart: optDate(req.RelationshipStart),
		Letter:            optString(req.Letter),
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create gift: %w", err))
		return
	}

	s.logger.Info("gift created", "gift_id", gift.ID, logField(r))
	respond(w, http.StatusCreated, createGiftResponse{
		giftView:  s.viewOf(gift),
		EditToken: gift.EditToken,
	})
}

// ─── GET /api/gifts/{giftRef} ─────────────────────────────────────────────────

func (s *Server) handleGetGift(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.viewOf(giftFromContext(r.Context())))
}

// ─── PATCH /api/gifts/{giftRef} ───────────────────────────────────────────────

// handleUpdateGift saves one or more form steps. Content is frozen once the
// gift is paid; later edits get 409.
func (s *Server) handleUpdateGift(w http.ResponseWriter, r *http.Request) {
	gift := giftFromContext(r.Context())

	var req giftContentRequest
	if !decode(w, r, &req) {
		return
	}
	req.normalize()
	if req.empty() {
		respondErr(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondValidation(w, err, "invalid gift content")
		return
	}

	updated, err := s.store.UpdateContent(r.Context(), db.UpdateGiftContentParams{
		ID:                gift.ID,
		Phrase:            optString(req.Phrase),
		RelationshipStart: optDate(req.RelationshipStart),
		Letter:            optString(req.Letter),
	})
	if errors.Is(err, store.ErrGiftNotDraft) {
		respondErr(w, http.StatusConflict, "gift is no longer editable")
		return
	}
	if errors.Is(err, store.ErrGiftNotFound) {
		respondErr(w, http.StatusNotFound, "gift not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("update gift: %w", err))
		return
	}

	respond(w, http.StatusOK, s.viewOf(updated))
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func optString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return nullString(*p)
}

// optDate parses an already validated YYYY-MM-DD value.
func optDate(p *string) sql.NullTime {
	if p == nil || *p == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse(time.DateOnly, *p)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
