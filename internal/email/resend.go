package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultResendEndpoint is the Resend send-email API.
const DefaultResendEndpoint = "https://api.resend.com/emails"

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	fromAddr   string // e.g. "hello@lovewheel.app"
	fromName   string // e.g. "LoveWheel"
	endpoint   string
	httpClient *http.Client
}

// Option customises a Resend client.
type Option func(*resendClient)

// WithEndpoint overrides the API URL. Used by tests to point at httptest.
func WithEndpoint(url string) Option {
	return func(c *resendClient) { c.endpoint = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *resendClient) { c.httpClient = hc }
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName string, opts ...Option) Sender {
	c := &resendClient{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		endpoint: DefaultResendEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// SendGiftReady sends the receipt with the share link.
func (c *resendClient) SendGiftReady(ctx context.Context, p GiftReadyParams) error {
	subject := "Your LoveWheel gift is ready"
	if p.Phrase != "" {
		subject = fmt.Sprintf("%q is ready to spin", p.Phrase)
	}

	amount := FormatAmount(p.AmountCents, p.Currency)

	return c.send(ctx, p.To, subject, giftReadyHTML(p.Phrase, p.ShareURL, amount))
}

// FormatAmount renders minor units as a display price, e.g. 900 usd → "9.00 USD".
func FormatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *resendClient) send(ctx context.Context, to, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr)

	reqBody := resendRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		HTML:    body,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return fmt.Errorf("email: Resend error %s: %s", parsed.Error.Name, parsed.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}

// ─── HTML TEMPLATES ───────────────────────────────────────────────────────────

func giftReadyHTML(phrase, shareURL, amount string) string {
	heading := "Your gift is ready"
	if phrase != "" {
		heading = html.EscapeString(phrase)
	}
	link := html.EscapeString(shareURL)

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">%s</h2>
  <p>We have received your payment of <strong>%s</strong>. Your wheel is unlocked
  and waiting for its first spin.</p>
  <p style="margin: 32px 0;">
    <a href="%s"
       style="background: #be123c; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      Open the gift
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">
    Share this link with the person it is for. If the button above does not
    work, copy this URL:<br>
    <a href="%s" style="color: #6b7280;">%s</a>
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">LoveWheel · One-time purchase · No account required</p>
</body>
</html>`, heading, amount, link, link, link)
}
