package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newQueriesWithMock(t *testing.T) (*Queries, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return New(conn), mock
}

var giftColumnNames = []string{
	"id", "slug", "edit_token", "status", "phrase", "relationship_start", "letter",
	"photo_url", "photo_path", "checkout_session_id", "checkout_started_at",
	"payment_reference", "buyer_email", "paid_at", "disabled_at", "created_at", "updated_at",
}

func giftRow(id uuid.UUID, status string, paidAt, reference driver.Value) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(giftColumnNames).AddRow(
		id.String(), "abcDEF123_-x", "tok", status, "Forever us", now, "A letter long enough to satisfy the minimum.",
		nil, nil, "cs_test_1", now,
		reference, nil, paidAt, nil, now, now,
	)
}

func TestCreateGift_ScansReturnedRow(t *testing.T) {
	q, mock := newQueriesWithMock(t)
	id := uuid.New()

	mock.ExpectQuery(`(?s)^-- name: CreateGift :one\s+INSERT INTO gifts`).
		WithArgs(id.String(), "abcDEF123_-x", "tok", "Forever us", sqlmock.AnyArg(), nil).
		WillReturnRows(giftRow(id, "draft", nil, nil))

	g, err := q.CreateGift(context.Background(), CreateGiftParams{
		ID:                id,
		Slug:              "abcDEF123_-x",
		EditToken:         "tok",
		Phrase:            sql.NullString{String: "Forever us", Valid: true},
		RelationshipStart: sql.NullTime{Time: time.Now(), Valid: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID != id {
		t.Errorf("id: got %s, want %s", g.ID, id)
	}
	if g.Status != GiftStatusDraft {
		t.Errorf("status: got %q", g.Status)
	}
	if g.PaidAt.Valid {
		t.Error("draft gift must not have paid_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkGiftPaid_GuardsOnDraftStatus(t *testing.T) {
	q, mock := newQueriesWithMock(t)
	id := uuid.New()
	paidAt := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)UPDATE gifts\s+SET status\s+= 'paid'.*WHERE id = \$1 AND status = 'draft'`).
		WithArgs(id.String(), paidAt, "pi_123", "buyer@example.com").
		WillReturnRows(giftRow(id, "paid", paidAt, "pi_123"))

	g, err := q.MarkGiftPaid(context.Background(), MarkGiftPaidParams{
		ID:               id,
		PaidAt:           paidAt,
		PaymentReference: "pi_123",
		BuyerEmail:       sql.NullString{String: "buyer@example.com", Valid: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Status != GiftStatusPaid || !g.PaidAt.Valid {
		t.Errorf("expected paid gift with paid_at, got status=%q paid_at=%v", g.Status, g.PaidAt)
	}
	if g.PaymentReference.String != "pi_123" {
		t.Errorf("payment_reference: got %q", g.PaymentReference.String)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkGiftPaid_NotDraftReturnsErrNoRows(t *testing.T) {
	q, mock := newQueriesWithMock(t)
	id := uuid.New()

	mock.ExpectQuery(`(?s)UPDATE gifts\s+SET status\s+= 'paid'`).
		WillReturnRows(sqlmock.NewRows(giftColumnNames))

	_, err := q.MarkGiftPaid(context.Background(), MarkGiftPaidParams{
		ID:               id,
		PaidAt:           time.Now(),
		PaymentReference: "pi_late",
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListPendingCheckouts_ReturnsAllRows(t *testing.T) {
	q, mock := newQueriesWithMock(t)
	a, b := uuid.New(), uuid.New()
	since := time.Now().Add(-24 * time.Hour)

	rows := giftRow(a, "draft", nil, nil)
	now := time.Now()
	rows.AddRow(
		b.String(), "zzzzzzzzzzzz", "tok2", "draft", nil, nil, nil,
		nil, nil, "cs_test_2", now,
		nil, nil, nil, nil, now, now,
	)
	mock.ExpectQuery(`(?s)-- name: ListPendingCheckouts :many`).
		WithArgs(since).
		WillReturnRows(rows)

	gifts, err := q.ListPendingCheckouts(context.Background(), since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gifts) != 2 {
		t.Fatalf("expected 2 gifts, got %d", len(gifts))
	}
	if gifts[1].CheckoutSessionID.String != "cs_test_2" {
		t.Errorf("checkout_session_id: got %q", gifts[1].CheckoutSessionID.String)
	}
}

func TestUpsertStripeEvent_ProcessedDuplicateReturnsErrNoRows(t *testing.T) {
	q, mock := newQueriesWithMock(t)
	payload := json.RawMessage(`{"id":"evt_1"}`)

	mock.ExpectQuery(`(?s)INSERT INTO stripe_events.*ON CONFLICT \(stripe_event_id\) DO UPDATE`).
		WithArgs("evt_1", "checkout.session.completed", []byte(payload)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "stripe_event_id", "type", "payload", "status", "error", "received_at", "processed_at",
		}))

	_, err := q.UpsertStripeEvent(context.Background(), UpsertStripeEventParams{
		StripeEventID: "evt_1",
		Type:          "checkout.session.completed",
		Payload:       payload,
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for processed duplicate, got %v", err)
	}
}
