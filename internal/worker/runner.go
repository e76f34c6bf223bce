// Package worker contains the background reconciler that confirms payments
// whose webhook was lost or delayed. It polls draft gifts with a recent
// checkout session and feeds each one through the same confirmation core the
// HTTP handlers use, so it can never unlock a gift Stripe has not charged for.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/lovewheel-backend/internal/db"
)

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. All fields have
// sensible defaults if zero-valued; call DefaultRunnerConfig() to get them.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 2.
	Workers int

	// PollInterval is how often the poller lists pending checkouts.
	// Default: 1 minute.
	PollInterval time.Duration

	// Window limits polling to checkouts started within this duration.
	// Stripe expires sessions after 24h, so older ones can never complete.
	// Default: 24h.
	Window time.Duration

	// JobTimeout is the per-job context deadline. Default: 30s.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts per gift per poll. Default: 3.
	MaxRetries int

	// RetryBackoff is the first back-off delay; it doubles per attempt.
	// Default: 2s.
	RetryBackoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      2,
		PollInterval: time.Minute,
		Window:       24 * time.Hour,
		JobTimeout:   30 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
	}
}

// Runner manages a pool of worker goroutines fed by a database poller.
type Runner struct {
	job    *Job
	q      db.Querier
	cfg    RunnerConfig
	logger *slog.Logger
	now    func() time.Time

	queue chan db.Gift
	wg    sync.WaitGroup

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(job *Job, q db.Querier, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}

	return &Runner{
		job:      job,
		q:        q,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		queue:    make(chan db.Gift, cfg.Workers*2),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Start launches the worker pool and the poller. It blocks until ctx is
// cancelled. Call it in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case gift := <-r.queue:
			r.runWithRetry(ctx, gift, log)
			r.release(gift.ID)
		}
	}
}

// poll lists pending checkouts on PollInterval, once immediately on startup
// so payments missed while the process was down are picked up.
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

// pollOnce enqueues every pending checkout that is not already being worked
// on. It returns the number of gifts enqueued.
func (r *Runner) pollOnce(ctx context.Context) int {
	gifts, err := r.q.ListPendingCheckouts(ctx, r.now().Add(-r.cfg.Window))
	if err != nil {
		r.logger.Error("worker: poll failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, g := range gifts {
		if !r.claim(g.ID) {
			continue
		}
		select {
		case r.queue <- g:
			enqueued++
			r.logger.Debug("worker: poller enqueued gift", "gift_id", g.ID)
		default:
			// Queue full; next poll cycle.
			r.release(g.ID)
		}
	}
	return enqueued
}

func (r *Runner) claim(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[id]; busy {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Runner) release(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}

// runWithRetry executes the job up to MaxRetries times. Exhausting retries
// leaves the gift a draft; it stays eligible for the next poll until its
// checkout falls out of Window.
func (r *Runner) runWithRetry(ctx context.Context, gift db.Gift, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, gift)
		cancel()

		if lastErr == nil {
			return
		}

		log.Warn("worker: job attempt failed",
			"gift_id", gift.ID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: base, 2×base, 4×base …
			backoff := r.cfg.RetryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: giving up until next poll", "gift_id", gift.ID, "error", lastErr)
}
