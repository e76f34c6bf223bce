package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/lovewheel-backend/internal/client"
)

const (
	pendingBody = `{"result":"pending","status":"draft","reason":"awaiting_payment"}`
	paidBody    = `{"result":"confirmed","status":"paid","slug":"abcdefghijkl","paid_at":"2026-02-14T12:00:00Z","payment_reference":"pi_1"}`
)

// sequence serves the given status/body pairs in order, repeating the last.
func sequence(t *testing.T, steps ...[2]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(steps) {
			n = len(steps) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(steps[n][0].(int))
		_, _ = w.Write([]byte(steps[n][1].(string)))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func fastClient(url string, attempts int) *client.Client {
	return client.New(url, client.WithPolling(time.Millisecond, attempts))
}

func TestResolve_SendsSessionID(t *testing.T) {
	var gotPath, gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSession = r.URL.Query().Get("session_id")
		_, _ = w.Write([]byte(paidBody))
	}))
	defer srv.Close()

	res, err := client.New(srv.URL).Resolve(context.Background(), "gift-1", "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "/api/gifts/gift-1/resolve", gotPath)
	assert.Equal(t, "cs_test_1", gotSession)
	assert.True(t, res.Paid())
	assert.Equal(t, "pi_1", res.PaymentReference)
	require.NotNil(t, res.PaidAt)
}

func TestResolve_MapsTerminalStatuses(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound: client.ErrNotFound,
		http.StatusGone:     client.ErrGone,
		http.StatusConflict: client.ErrMismatch,
	}
	for code, want := range cases {
		srv, _ := sequence(t, [2]any{code, `{"error":"x"}`})
		_, err := client.New(srv.URL).Resolve(context.Background(), "g", "cs")
		assert.ErrorIs(t, err, want, "status %d", code)
	}
}

func TestWaitForPayment_ReturnsOncePaid(t *testing.T) {
	srv, calls := sequence(t,
		[2]any{http.StatusAccepted, pendingBody},
		[2]any{http.StatusServiceUnavailable, `{"error":"retry"}`},
		[2]any{http.StatusOK, paidBody},
	)

	res, err := fastClient(srv.URL, 5).WaitForPayment(context.Background(), "g", "cs")
	require.NoError(t, err)
	assert.True(t, res.Paid())
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitForPayment_BoundedAttemptsEndInStillConfirming(t *testing.T) {
	srv, calls := sequence(t, [2]any{http.StatusAccepted, pendingBody})

	res, err := fastClient(srv.URL, 4).WaitForPayment(context.Background(), "g", "cs")
	assert.ErrorIs(t, err, client.ErrStillConfirming)
	assert.Equal(t, "awaiting_payment", res.Reason)
	assert.Equal(t, int32(4), calls.Load())
}

func TestWaitForPayment_PersistentServerErrorEndsInStillConfirming(t *testing.T) {
	srv, calls := sequence(t, [2]any{http.StatusInternalServerError, `{"error":"boom"}`})

	_, err := fastClient(srv.URL, 3).WaitForPayment(context.Background(), "g", "cs")
	assert.ErrorIs(t, err, client.ErrStillConfirming)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitForPayment_TerminalErrorStopsImmediately(t *testing.T) {
	srv, calls := sequence(t, [2]any{http.StatusConflict, `{"result":"mismatch"}`})

	_, err := fastClient(srv.URL, 10).WaitForPayment(context.Background(), "g", "cs")
	assert.ErrorIs(t, err, client.ErrMismatch)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWaitForPayment_RespectsContext(t *testing.T) {
	srv, _ := sequence(t, [2]any{http.StatusAccepted, pendingBody})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.New(srv.URL, client.WithPolling(time.Hour, 100)).WaitForPayment(ctx, "g", "cs")
	assert.ErrorIs(t, err, context.Canceled)
}
