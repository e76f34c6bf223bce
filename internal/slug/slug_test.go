package slug_test

import (
	"testing"

	"github.com/nyashahama/lovewheel-backend/internal/slug"
)

func TestNew_HasExpectedLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		s, err := slug.New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slug.Valid(s) {
			t.Fatalf("generated slug %q is not valid", s)
		}
	}
}

func TestNew_DoesNotRepeat(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		s, err := slug.New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate slug %q after %d draws", s, i)
		}
		seen[s] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"abcDEF123_-x", true},
		{"short", false},
		{"abcDEF123_-x1", false},
		{"abc DEF123_-", false},
		{"abc/DEF123_-", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := slug.Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewEditToken_Is64Hex(t *testing.T) {
	tok, err := slug.NewEditToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("expected 64 chars, got %d", len(tok))
	}
}
