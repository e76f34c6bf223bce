package api

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNewValidator_NotFutureRule(t *testing.T) {
	v := newValidator()

	threeDaysAhead := time.Now().UTC().AddDate(0, 0, 3).Format(time.DateOnly)

	cases := []struct {
		name  string
		date  string
		valid bool
	}{
		{"past date", "2024-02-14", true},
		{"today", time.Now().UTC().Format(time.DateOnly), true},
		{"future date", threeDaysAhead, false},
		{"not a date", "14/02/2024", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := giftContentRequest{RelationshipStart: strPtr(tc.date)}
			err := v.Struct(req)
			if tc.valid && err != nil {
				t.Errorf("expected %q to pass, got %v", tc.date, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("expected %q to fail validation", tc.date)
			}
		})
	}
}
