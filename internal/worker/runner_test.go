package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/nyashahama/lovewheel-backend/internal/db/dbtest"
	"github.com/nyashahama/lovewheel-backend/internal/lifecycle"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubConfirmer returns the queued results in order, then the last one.
type stubConfirmer struct {
	mu      sync.Mutex
	results []lifecycle.Result
	calls   []lifecycle.Evidence
}

func (c *stubConfirmer) ConfirmPayment(_ context.Context, _ string, ev lifecycle.Evidence) lifecycle.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, ev)
	i := len(c.calls) - 1
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	return c.results[i]
}

func (c *stubConfirmer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func pendingCheckout(startedAt time.Time) db.Gift {
	return db.Gift{
		ID:                uuid.New(),
		Slug:              "pendingcheck",
		Status:            db.GiftStatusDraft,
		CheckoutSessionID: sql.NullString{String: "cs_pending", Valid: true},
		CheckoutStartedAt: sql.NullTime{Time: startedAt, Valid: true},
	}
}

func TestJob_UsesStoredSessionAsEvidence(t *testing.T) {
	c := &stubConfirmer{results: []lifecycle.Result{{Outcome: lifecycle.OutcomeConfirmed}}}
	job := NewJob(c, discardLogger())

	if err := job.Run(context.Background(), pendingCheckout(time.Now())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(c.calls) != 1 || c.calls[0].Kind != lifecycle.EvidenceSession || c.calls[0].SessionID != "cs_pending" {
		t.Errorf("evidence: %+v", c.calls)
	}
}

func TestJob_UnpaidIsNotAnError(t *testing.T) {
	c := &stubConfirmer{results: []lifecycle.Result{{Outcome: lifecycle.OutcomePending, Reason: lifecycle.ReasonAwaitingPayment}}}
	job := NewJob(c, discardLogger())

	if err := job.Run(context.Background(), pendingCheckout(time.Now())); err != nil {
		t.Fatalf("expected nil for an unpaid session, got %v", err)
	}
}

func TestJob_TransientFailureIsReturned(t *testing.T) {
	c := &stubConfirmer{results: []lifecycle.Result{{
		Outcome: lifecycle.OutcomePending,
		Reason:  lifecycle.ReasonGatewayUnavailable,
		Cause:   errors.New("stripe 503"),
	}}}
	job := NewJob(c, discardLogger())

	if err := job.Run(context.Background(), pendingCheckout(time.Now())); err == nil {
		t.Fatal("expected an error for a gateway failure")
	}
}

func TestJob_SkipsGiftWithoutSession(t *testing.T) {
	c := &stubConfirmer{results: []lifecycle.Result{{Outcome: lifecycle.OutcomeConfirmed}}}
	job := NewJob(c, discardLogger())

	g := pendingCheckout(time.Now())
	g.CheckoutSessionID = sql.NullString{}
	if err := job.Run(context.Background(), g); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.count() != 0 {
		t.Error("gift without a session must not be confirmed")
	}
}

func TestRunWithRetry_RetriesTransientFailures(t *testing.T) {
	transient := lifecycle.Result{Outcome: lifecycle.OutcomePending, Cause: errors.New("timeout")}
	c := &stubConfirmer{results: []lifecycle.Result{transient, transient, {Outcome: lifecycle.OutcomeConfirmed}}}
	r := NewRunner(NewJob(c, discardLogger()), dbtest.NewMemory(), RunnerConfig{
		MaxRetries:   5,
		RetryBackoff: time.Millisecond,
	}, discardLogger())

	r.runWithRetry(context.Background(), pendingCheckout(time.Now()), discardLogger())

	if c.count() != 3 {
		t.Errorf("expected 3 attempts, got %d", c.count())
	}
}

func TestRunWithRetry_StopsAtMaxRetries(t *testing.T) {
	c := &stubConfirmer{results: []lifecycle.Result{{Outcome: lifecycle.OutcomePending, Cause: errors.New("down")}}}
	r := NewRunner(NewJob(c, discardLogger()), dbtest.NewMemory(), RunnerConfig{
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, discardLogger())

	r.runWithRetry(context.Background(), pendingCheckout(time.Now()), discardLogger())

	if c.count() != 2 {
		t.Errorf("expected 2 attempts, got %d", c.count())
	}
}

func TestPollOnce_EnqueuesOnlyRecentCheckoutsOnce(t *testing.T) {
	mem := dbtest.NewMemory()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	recent := pendingCheckout(now.Add(-time.Hour))
	stale := pendingCheckout(now.Add(-48 * time.Hour))
	mem.Put(recent)
	mem.Put(stale)

	c := &stubConfirmer{results: []lifecycle.Result{{Outcome: lifecycle.OutcomePending}}}
	r := NewRunner(NewJob(c, discardLogger()), mem, RunnerConfig{Workers: 4, Window: 24 * time.Hour}, discardLogger())
	r.now = func() time.Time { return now }

	if n := r.pollOnce(context.Background()); n != 1 {
		t.Fatalf("first poll: expected 1 enqueued, got %d", n)
	}
	// Still in flight: a second poll must not enqueue it again.
	if n := r.pollOnce(context.Background()); n != 0 {
		t.Fatalf("second poll: expected 0 enqueued, got %d", n)
	}

	got := <-r.queue
	if got.ID != recent.ID {
		t.Errorf("enqueued %s, want %s", got.ID, recent.ID)
	}
	r.release(got.ID)
	if n := r.pollOnce(context.Background()); n != 1 {
		t.Errorf("after release: expected 1 enqueued, got %d", n)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	mem := dbtest.NewMemory()
	mem.Put(pendingCheckout(time.Now()))

	c := &stubConfirmer{results: []lifecycle.Result{{Outcome: lifecycle.OutcomeConfirmed}}}
	r := NewRunner(NewJob(c, discardLogger()), mem, RunnerConfig{PollInterval: 10 * time.Millisecond}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for c.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("runner never processed the pending checkout")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
