// Package dbtest provides an in-memory db.Querier for tests in other packages.
// It keeps the semantics the application relies on: status-guarded updates
// are atomic and return sql.ErrNoRows when the guard fails.
package dbtest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/nyashahama/lovewheel-backend/internal/db"
	"github.com/sqlc-dev/pqtype"
)

// Memory is a goroutine-safe fake of db.Querier.
type Memory struct {
	mu     sync.Mutex
	gifts  map[uuid.UUID]db.Gift
	events map[string]db.StripeEvent

	// SlugCollisions makes the next N CreateGift calls fail with the unique
	// violation Postgres reports for a duplicate slug.
	SlugCollisions int

	// GetErr, when set, is returned by GetGiftByID and GetGiftBySlug.
	GetErr error

	// MarkPaidErr, when set, is returned by MarkGiftPaid.
	MarkPaidErr error

	// PaidTransitions counts MarkGiftPaid calls that actually changed a row.
	PaidTransitions int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		gifts:  make(map[uuid.UUID]db.Gift),
		events: make(map[string]db.StripeEvent),
	}
}

// Put inserts or replaces a gift as-is. Used to seed fixtures.
func (m *Memory) Put(g db.Gift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = g.CreatedAt
	}
	m.gifts[g.ID] = g
}

// Gift returns the stored copy of a gift.
func (m *Memory) Gift(id uuid.UUID) (db.Gift, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gifts[id]
	return g, ok
}

// Event returns the stored delivery record for a webhook event id.
func (m *Memory) Event(stripeEventID string) (db.StripeEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[stripeEventID]
	return e, ok
}

func (m *Memory) CreateGift(_ context.Context, p db.CreateGiftParams) (db.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SlugCollisions > 0 {
		m.SlugCollisions--
		return db.Gift{}, &pq.Error{Code: "23505", Constraint: "gifts_slug_key"}
	}
	for _, g := range m.gifts {
		if g.Slug == p.Slug {
			return db.Gift{}, &pq.Error{Code: "23505", Constraint: "gifts_slug_key"}
		}
	}

	now := time.Now()
	g := db.Gift{
		ID:                p.ID,
		Slug:              p.Slug,
		EditToken:         p.EditToken,
		Status:            db.GiftStatusDraft,
		Phrase:            p.Phrase,
		RelationshipStart: p.RelationshipStart,
		Letter:            p.Letter,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.gifts[g.ID] = g
	return g, nil
}

func (m *Memory) GetGiftByID(_ context.Context, id uuid.UUID) (db.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return db.Gift{}, m.GetErr
	}
	g, ok := m.gifts[id]
	if !ok {
		return db.Gift{}, sql.ErrNoRows
	}
	return g, nil
}

func (m *Memory) GetGiftBySlug(_ context.Context, slug string) (db.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return db.Gift{}, m.GetErr
	}
	for _, g := range m.gifts {
		if g.Slug == slug {
			return g, nil
		}
	}
	return db.Gift{}, sql.ErrNoRows
}

// updateDraft applies fn to a draft gift under the lock.
func (m *Memory) updateDraft(id uuid.UUID, fn func(g *db.Gift)) (db.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gifts[id]
	if !ok || g.Status != db.GiftStatusDraft {
		return db.Gift{}, sql.ErrNoRows
	}
	fn(&g)
	g.UpdatedAt = time.Now()
	m.gifts[id] = g
	return g, nil
}

func (m *Memory) UpdateGiftContent(_ context.Context, p db.UpdateGiftContentParams) (db.Gift, error) {
	return m.updateDraft(p.ID, func(g *db.Gift) {
		if p.Phrase.Valid {
			g.Phrase = p.Phrase
		}
		if p.RelationshipStart.Valid {
			g.RelationshipStart = p.RelationshipStart
		}
		if p.Letter.Valid {
			g.Letter = p.Letter
		}
	})
}

func (m *Memory) SetGiftPhoto(_ context.Context, p db.SetGiftPhotoParams) (db.Gift, error) {
	return m.updateDraft(p.ID, func(g *db.Gift) {
		g.PhotoUrl = sql.NullString{String: p.PhotoUrl, Valid: true}
		g.PhotoPath = sql.NullString{String: p.PhotoPath, Valid: true}
	})
}

func (m *Memory) AttachCheckoutSession(_ context.Context, p db.AttachCheckoutSessionParams) (db.Gift, error) {
	return m.updateDraft(p.ID, func(g *db.Gift) {
		g.CheckoutSessionID = sql.NullString{String: p.CheckoutSessionID, Valid: true}
		g.CheckoutStartedAt = sql.NullTime{Time: p.StartedAt, Valid: true}
	})
}

func (m *Memory) MarkGiftPaid(_ context.Context, p db.MarkGiftPaidParams) (db.Gift, error) {
	if m.MarkPaidErr != nil {
		return db.Gift{}, m.MarkPaidErr
	}
	g, err := m.updateDraft(p.ID, func(g *db.Gift) {
		g.Status = db.GiftStatusPaid
		g.PaidAt = sql.NullTime{Time: p.PaidAt, Valid: true}
		g.PaymentReference = sql.NullString{String: p.PaymentReference, Valid: true}
		if p.BuyerEmail.Valid {
			g.BuyerEmail = p.BuyerEmail
		}
	})
	if err == nil {
		m.mu.Lock()
		m.PaidTransitions++
		m.mu.Unlock()
	}
	return g, err
}

func (m *Memory) DisableGift(_ context.Context, id uuid.UUID) (db.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gifts[id]
	if !ok {
		return db.Gift{}, sql.ErrNoRows
	}
	g.Status = db.GiftStatusDisabled
	if !g.DisabledAt.Valid {
		g.DisabledAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
	g.UpdatedAt = time.Now()
	m.gifts[id] = g
	return g, nil
}

func (m *Memory) ListPendingCheckouts(_ context.Context, startedAfter time.Time) ([]db.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Gift
	for _, g := range m.gifts {
		if g.Status == db.GiftStatusDraft && g.CheckoutSessionID.Valid && g.CheckoutStartedAt.Time.After(startedAfter) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckoutStartedAt.Time.Before(out[j].CheckoutStartedAt.Time)
	})
	return out, nil
}

func (m *Memory) UpsertStripeEvent(_ context.Context, p db.UpsertStripeEventParams) (db.StripeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[p.StripeEventID]; ok {
		if e.Status == db.StripeEventStatusProcessed {
			return db.StripeEvent{}, sql.ErrNoRows
		}
		e.Status = db.StripeEventStatusReceived
		e.Error = sql.NullString{}
		m.events[p.StripeEventID] = e
		return e, nil
	}
	e := db.StripeEvent{
		ID:            uuid.New(),
		StripeEventID: p.StripeEventID,
		Type:          p.Type,
		Payload:       pqtype.NullRawMessage{RawMessage: p.Payload, Valid: len(p.Payload) > 0},
		Status:        db.StripeEventStatusReceived,
		ReceivedAt:    time.Now(),
	}
	m.events[p.StripeEventID] = e
	return e, nil
}

func (m *Memory) MarkStripeEventProcessed(_ context.Context, stripeEventID string) (db.StripeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[stripeEventID]
	if !ok {
		return db.StripeEvent{}, sql.ErrNoRows
	}
	e.Status = db.StripeEventStatusProcessed
	e.Error = sql.NullString{}
	e.ProcessedAt = sql.NullTime{Time: time.Now(), Valid: true}
	m.events[stripeEventID] = e
	return e, nil
}

func (m *Memory) MarkStripeEventFailed(_ context.Context, p db.MarkStripeEventFailedParams) (db.StripeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[p.StripeEventID]
	if !ok {
		return db.StripeEvent{}, sql.ErrNoRows
	}
	e.Status = db.StripeEventStatusFailed
	e.Error = p.Error
	m.events[p.StripeEventID] = e
	return e, nil
}

var _ db.Querier = (*Memory)(nil)
