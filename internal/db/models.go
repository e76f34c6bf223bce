package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// GiftStatus is the closed set of lifecycle states a gift can be in.
type GiftStatus string

const (
	GiftStatusDraft    GiftStatus = "draft"
	GiftStatusPaid     GiftStatus = "paid"
	GiftStatusDisabled GiftStatus = "disabled"
)

// Gift mirrors one row of the gifts table.
type Gift struct {
	ID                uuid.UUID
	Slug              string
	EditToken         string
	Status            GiftStatus
	Phrase            sql.NullString
	RelationshipStart sql.NullTime
	Letter            sql.NullString
	PhotoUrl          sql.NullString
	PhotoPath         sql.NullString
	CheckoutSessionID sql.NullString
	CheckoutStartedAt sql.NullTime
	PaymentReference  sql.NullString
	BuyerEmail        sql.NullString
	PaidAt            sql.NullTime
	DisabledAt        sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type StripeEventStatus string

const (
	StripeEventStatusReceived  StripeEventStatus = "received"
	StripeEventStatusProcessed StripeEventStatus = "processed"
	StripeEventStatusFailed    StripeEventStatus = "failed"
)

// StripeEvent is the delivery log of webhook events.
type StripeEvent struct {
	ID            uuid.UUID
	StripeEventID string
	Type          string
	Payload       pqtype.NullRawMessage
	Status        StripeEventStatus
	Error         sql.NullString
	ReceivedAt    time.Time
	ProcessedAt   sql.NullTime
}
