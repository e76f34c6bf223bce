// Package client is a small Go client for the gift resolve endpoint. It is
// what an operator (or a test harness) uses to watch a checkout settle the
// same way the success page does: a bounded poll that gives up with
// ErrStillConfirming instead of waiting forever.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrNotFound means the gift does not exist.
	ErrNotFound = errors.New("client: gift not found")

	// ErrGone means the gift was disabled.
	ErrGone = errors.New("client: gift has been removed")

	// ErrMismatch means the session id belongs to a different gift.
	ErrMismatch = errors.New("client: checkout session belongs to another gift")

	// ErrStillConfirming is returned by WaitForPayment when every attempt saw
	// a pending payment. The payment may still complete later.
	ErrStillConfirming = errors.New("client: payment still confirming")

	// errPending marks a 202 response inside the retry loop.
	errPending = errors.New("client: payment pending")
)

// Defaults for WaitForPayment.
const (
	DefaultInterval = 2 * time.Second
	DefaultAttempts = 10
)

// Resolution is the decoded body of a resolve response.
type Resolution struct {
	// Set when no session id was sent.
	Exists bool   `json:"exists"`
	ID     string `json:"id,omitempty"`

	// Set when a session id was sent.
	Result           string     `json:"result,omitempty"`
	Status           string     `json:"status,omitempty"`
	Slug             string     `json:"slug,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// Paid reports whether the gift is unlocked.
func (r Resolution) Paid() bool {
	return r.Status == "paid"
}

// Client talks to one LoveWheel API.
type Client struct {
	baseURL  string
	http     *http.Client
	interval time.Duration
	attempts uint64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPolling sets the delay between attempts and the total attempt count.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		if interval > 0 {
			c.interval = interval
		}
		if attempts > 0 {
			c.attempts = uint64(attempts)
		}
	}
}

// New returns a Client for the API at baseURL, e.g. "https://api.lovewheel.app".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		interval: DefaultInterval,
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve makes one call to GET /api/gifts/{ref}/resolve. A 202 is returned
// as a Resolution with Result "pending" and a nil error.
func (c *Client) Resolve(ctx context.Context, ref, sessionID string) (Resolution, error) {
	endpoint := c.baseURL + "/api/gifts/" + url.PathEscape(ref) + "/resolve"
	if sessionID != "" {
		endpoint += "?session_id=" + url.QueryEscape(sessionID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Resolution{}, fmt.Errorf("client: resolve %s: %w", ref, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Resolution{}, fmt.Errorf("client: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		var res Resolution
		if err := json.Unmarshal(body, &res); err != nil {
			return Resolution{}, fmt.Errorf("client: decode response: %w", err)
		}
		return res, nil
	case http.StatusNotFound:
		return Resolution{}, ErrNotFound
	case http.StatusGone:
		return Resolution{}, ErrGone
	case http.StatusConflict:
		return Resolution{}, ErrMismatch
	default:
		return Resolution{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

// StatusError is an unexpected HTTP status from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether a later attempt may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// WaitForPayment polls Resolve until the gift is paid, a terminal error is
// returned, or the attempts run out. Pending responses, 5xx and transport
// errors are retried at a constant interval. When attempts run out the last
// Resolution is returned together with ErrStillConfirming.
func (c *Client) WaitForPayment(ctx context.Context, ref, sessionID string) (Resolution, error) {
	var last Resolution

	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewConstant(c.interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := c.Resolve(ctx, ref, sessionID)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		last = res
		if res.Paid() {
			return nil
		}
		return retry.RetryableError(errPending)
	})

	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return last, err
	case errors.Is(err, errPending):
		return last, ErrStillConfirming
	case isTransient(err):
		return last, fmt.Errorf("%w: %v", ErrStillConfirming, err)
	default:
		return last, err
	}
}

func isTransient(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrGone) || errors.Is(err, ErrMismatch) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// Transport failures.
	return true
}
