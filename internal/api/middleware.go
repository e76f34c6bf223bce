package api

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/lovewheel-backend/internal/db"
)

// ─── CONTEXT KEYS ─────────────────────────────────────────────────────────────

type contextKey string

const ctxKeyGift contextKey = "gift"

// giftFromContext returns the gift loaded by requireEditToken.
func giftFromContext(ctx context.Context) db.Gift {
	g, _ := ctx.Value(ctxKeyGift).(db.Gift)
	return g
}

// ─── EDIT TOKEN AUTH ──────────────────────────────────────────────────────────

// requireEditToken is chi middleware that validates the X-Edit-Token header
// against the gift named in the URL.
//
// The token is returned once by POST /api/gifts and kept by the browser. If it
// is missing or doesn't match the gift, the handler receives a 401/403 before
// it runs. On success the loaded gift is stored in the request context.
func (s *Server) requireEditToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		giftID, err := parseUUID(chi.URLParam(r, "giftRef"))
		if err != nil {
			respondErr(w, http.StatusBadRequest, "invalid gift id")
			return
		}

		token := strings.TrimSpace(r.Header.Get("X-Edit-Token"))
		if token == "" {
			respondErr(w, http.StatusUnauthorized, "missing X-Edit-Token header")
			return
		}

		gift, err := s.store.Q().GetGiftByID(r.Context(), giftID)
		if errors.Is(err, sql.ErrNoRows) {
			respondErr(w, http.StatusNotFound, "gift not found")
			return
		}
		if err != nil {
			s.respondInternalErr(w, r, fmt.Errorf("load gift for auth: %w", err))
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(gift.EditToken)) != 1 {
			respondErr(w, http.StatusForbidden, "token does not match gift")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyGift, gift)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ─── ADMIN AUTH ───────────────────────────────────────────────────────────────

// requireAdmin checks "Authorization: Bearer <ADMIN_TOKEN>".
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			s.logger.Warn("admin: rejected request", logField(r))
			respondErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

// corsMiddleware handles preflight OPTIONS requests and sets CORS headers.
// In production only the configured frontend origin is allowed.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed := origin
		if s.cfg.Env == "production" {
			allowed = strings.TrimRight(s.cfg.PublicAppURL, "/")
		}

		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Edit-Token, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// respondInternalErr logs an unexpected error and returns a 500 to the client
// without leaking internal details.
func (s *Server) respondInternalErr(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal error",
		"error", err,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondErr(w, http.StatusInternalServerError, "internal server error")
}

// ─── REQUEST PARSING HELPERS ─────────────────────────────────────────────────

// decode JSON-decodes r.Body into dst. Returns false and writes 400 if the
// body is missing, malformed, or too large. Callers should return immediately
// on false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// logField returns a slog.Attr using the request ID for correlation.
func logField(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(r.Context()))
}
