// Package api implements the HTTP layer for LoveWheel.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
	"github.com/nyashahama/lovewheel-backend/internal/storage"
	"github.com/nyashahama/lovewheel-backend/internal/store"
	stripeinternal "github.com/nyashahama/lovewheel-backend/internal/stripe"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// PublicAppURL is the frontend origin; share links and Stripe redirect
	// URLs are built from it. e.g. "https://lovewheel.app"
	PublicAppURL string

	// AdminToken enables /api/admin when non-empty.
	AdminToken string

	// Flat price of one gift.
	PriceCents  int64
	Currency    string
	ProductName string

	// Env is "production", "staging", or "development".
	Env string
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// store handles buyer-side writes and single-query reads via store.Q().
	store *store.Store

	// core confirms payments and guards public reads.
	core *lifecycle.Service

	// stripe creates checkout sessions. Webhooks are verified inside core.
	stripe stripeinternal.Client

	// photos stores the normalised cover image.
	photos storage.Uploader

	validate *validator.Validate
	cfg      Config
	logger   *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	st *store.Store,
	core *lifecycle.Service,
	stripeClient stripeinternal.Client,
	photos storage.Uploader,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		store:    st,
		core:     core,
		stripe:   stripeClient,
		photos:   photos,
		validate: newValidator(),
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Drafts: no auth required (anonymous creation).
		r.Post("/gifts", s.handleCreateGift)

		r.Route("/gifts/{giftRef}", func(r chi.Router) {
			// Resolve: no auth; accepts id or slug. A session id is verified
			// against Stripe and the gift's own metadata before anything changes.
			r.Get("/resolve", s.handleResolve)

			// Buyer-scoped routes require the gift's X-Edit-Token.
			r.Group(func(r chi.Router) {
				r.Use(s.requireEditToken)
				r.Get("/", s.handleGetGift)
				r.Patch("/", s.handleUpdateGift)
				r.Put("/photo", s.handleUploadPhoto)
				r.Post("/checkout", s.handleCreateCheckout)
				r.Post("/sync", s.handleSync)
			})
		})

		// Share link: no auth; the read guard decides what is visible.
		r.Get("/public/{slug}", s.handleGetPublic)
		r.Get("/public/{slug}/qr.png", s.handleGetQR)

		// Stripe webhook: no auth (signature verification inside core).
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		// Admin: only mounted when a token is configured.
		if s.cfg.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/gifts/{ref}/disable", s.handleDisableGift)
			})
		}
	})

	return r
}
