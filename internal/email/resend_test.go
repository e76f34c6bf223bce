package email_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/lovewheel-backend/internal/email"
)

func TestSendGiftReady_PostsToResend(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	sender := email.NewResendClient("re_key", "hello@lovewheel.app", "LoveWheel", email.WithEndpoint(srv.URL))
	err := sender.SendGiftReady(context.Background(), email.GiftReadyParams{
		To:          "buyer@example.com",
		ShareURL:    "https://lovewheel.app/g/abcdefghijkl",
		Phrase:      "You & me",
		AmountCents: 900,
		Currency:    "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_key", gotAuth)
	assert.Equal(t, "LoveWheel <hello@lovewheel.app>", gotBody["from"])
	assert.Equal(t, []any{"buyer@example.com"}, gotBody["to"])

	body, _ := gotBody["html"].(string)
	assert.Contains(t, body, "https://lovewheel.app/g/abcdefghijkl")
	assert.Contains(t, body, "9.00 USD")
	assert.Contains(t, body, "You &amp; me", "phrase must be HTML-escaped")
}

func TestSendGiftReady_ResendErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"name":"validation_error","message":"bad from","statusCode":422}}`))
	}))
	defer srv.Close()

	sender := email.NewResendClient("re_key", "x@y", "X", email.WithEndpoint(srv.URL))
	err := sender.SendGiftReady(context.Background(), email.GiftReadyParams{To: "a@b"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "validation_error"))
}

func TestSendGiftReady_Non2xxWithoutErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sender := email.NewResendClient("re_key", "x@y", "X", email.WithEndpoint(srv.URL))
	err := sender.SendGiftReady(context.Background(), email.GiftReadyParams{To: "a@b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestLogSender_NeverFails(t *testing.T) {
	sender := email.NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, sender.SendGiftReady(context.Background(), email.GiftReadyParams{To: "a@b"}))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "9.00 USD", email.FormatAmount(900, "usd"))
	assert.Equal(t, "12.05 EUR", email.FormatAmount(1205, "eur"))
}
