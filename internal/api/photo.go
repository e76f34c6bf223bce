package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/storage"
	"github.com/nyashahama/lovewheel-backend/internal/store"
)

// maxPhotoBytes is the largest accepted original upload.
const maxPhotoBytes = 10 << 20

// ─── PUT /api/gifts/{giftRef}/photo ───────────────────────────────────────────

// handleUploadPhoto accepts multipart field "photo" (JPEG, PNG or WebP),
// normalises it to a bounded JPEG and stores it in the gift's single slot.
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	gift := giftFromContext(r.Context())
	if gift.Status != db.GiftStatusDraft {
		respondErr(w, http.StatusConflict, "gift is no longer editable")
		return
	}

	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondErr(w, http.StatusRequestEntityTooLarge, "photo must be 10 MB or smaller")
			return
		}
		respondErr(w, http.StatusBadRequest, "expected multipart/form-data with a photo field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("photo")
	if err != nil {
		respondErr(w, http.StatusBadRequest, "missing photo field")
		return
	}
	defer file.Close()

	original, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read photo")
		return
	}
	if len(original) > maxPhotoBytes {
		respondErr(w, http.StatusRequestEntityTooLarge, "photo must be 10 MB or smaller")
		return
	}

	normalized, err := storage.NormalizePhoto(original)
	if errors.Is(err, storage.ErrUnsupportedImage) {
		respondErr(w, http.StatusUnsupportedMediaType, "photo must be a JPEG, PNG or WebP image")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("normalize photo: %w", err))
		return
	}

	// Reading and normalising the upload can take seconds; a payment may
	// have landed meanwhile. Re-check so a paid gift's photo is not replaced.
	current, err := s.store.Q().GetGiftByID(r.Context(), gift.ID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("reload gift before upload: %w", err))
		return
	}
	if current.Status != db.GiftStatusDraft {
		respondErr(w, http.StatusConflict, "gift is no longer editable")
		return
	}

	key := storage.CoverKey(gift.ID)
	url, err := s.photos.Put(r.Context(), key, normalized, storage.PhotoContentType)
	if err != nil {
		s.logger.Error("photo: upload failed", "gift_id", gift.ID, "error", err, logField(r))
		respondErr(w, http.StatusBadGateway, "photo storage unavailable, please retry")
		return
	}

	updated, err := s.store.SetPhoto(r.Context(), db.SetGiftPhotoParams{
		ID:        gift.ID,
		PhotoUrl:  url,
		PhotoPath: key,
	})
	if errors.Is(err, store.ErrGiftNotDraft) {
		respondErr(w, http.StatusConflict, "gift is no longer editable")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("set photo: %w", err))
		return
	}

	respond(w, http.StatusOK, s.viewOf(updated))
}
