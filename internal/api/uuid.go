package api

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// parseUUID wraps uuid.Parse.
func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// timePtr returns nil for a NULL timestamp so it is omitted from JSON.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
