package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/nyashahama/lovewheel-backend/internal/api"
	"github.com/nyashahama/lovewheel-backend/internal/config"
	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/email"
	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
	"github.com/nyashahama/lovewheel-backend/internal/storage"
	"github.com/nyashahama/lovewheel-backend/internal/store"
	stripeinternal "github.com/nyashahama/lovewheel-backend/internal/stripe"
	"github.com/nyashahama/lovewheel-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// Root context cancelled by OS signal. Reconciler and HTTP server both
	// respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.New(queries)

	// ── Stripe ────────────────────────────────────────────────────────────────
	stripeClient := stripeinternal.NewClient(cfg.StripeSecretKey)

	// ── Email (Resend) ────────────────────────────────────────────────────────
	// Without an API key receipts are only logged, which keeps local
	// development free of a mail provider.
	var mailer email.Sender
	if cfg.ResendAPIKey != "" {
		mailer = email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFromAddr, cfg.EmailFromName)
		logger.Info("email: using Resend")
	} else {
		mailer = email.NewLogSender(logger)
		logger.Warn("email: RESEND_API_KEY not set, receipts will only be logged")
	}

	// ── Photo storage ─────────────────────────────────────────────────────────
	photos, err := storage.NewS3(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		ForcePathStyle:  cfg.S3ForcePathStyle,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	// ── Payment confirmation core ─────────────────────────────────────────────
	core := lifecycle.New(queries, stripeClient, mailer, lifecycle.Config{
		WebhookSecret: cfg.StripeWebhookSecret,
		PublicAppURL:  cfg.PublicAppURL,
		AmountCents:   cfg.GiftPriceCents,
		Currency:      cfg.GiftCurrency,
	}, logger)

	// ── Reconciler ────────────────────────────────────────────────────────────
	job := worker.NewJob(core, logger)
	runner := worker.NewRunner(job, queries, worker.RunnerConfig{
		Workers:      cfg.ReconcileWorkers,
		PollInterval: cfg.ReconcileInterval,
		Window:       cfg.ReconcileWindow,
		JobTimeout:   cfg.ReconcileJobTimeout,
		MaxRetries:   cfg.ReconcileMaxRetries,
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		st,
		core,
		stripeClient,
		photos,
		api.Config{
			PublicAppURL: cfg.PublicAppURL,
			AdminToken:   cfg.AdminToken,
			PriceCents:   cfg.GiftPriceCents,
			Currency:     cfg.GiftCurrency,
			ProductName:  cfg.GiftProductName,
			Env:          cfg.Env,
		},
		logger,
	)
	if cfg.AdminToken == "" {
		logger.Info("admin routes disabled (ADMIN_TOKEN not set)")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // photo uploads on slow mobile links
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// The reconciler blocks until ctx is done and its workers have drained.
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		<-runnerDone
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	<-runnerDone
	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool, verifies it is reachable and applies any
// pending migrations. The server refuses to start against an older schema.
func openDB(ctx context.Context, dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, db.New(pool), nil
}
