// Package slug generates the public, unguessable identifiers used in share
// links and the secret edit tokens handed to buyers.
package slug

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Length is the number of characters in a gift slug.
const Length = 12

// alphabet is URL-safe and has 64 symbols so every random byte maps to a
// symbol without modulo bias (byte & 63).
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// New returns a random slug of Length characters (72 bits of entropy).
func New() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("slug: read random: %w", err)
	}
	out := make([]byte, Length)
	for i, b := range buf {
		out[i] = alphabet[b&63]
	}
	return string(out), nil
}

// Valid reports whether s has the shape of a slug produced by New.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// NewEditToken returns a 64-character hex token (32 random bytes).
func NewEditToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("slug: read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
