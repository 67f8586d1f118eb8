package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gofrs/uuid/v5"
)

// New returns a time-ordered request identifier.
func New() string {
	u, err := uuid.NewV7()
	if err != nil {
		return fallback()
	}
	return u.String()
}

// fallback is used when the UUID generator fails.
func fallback() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "req-" + hex.EncodeToString(b[:])
}

// Valid reports whether a client-supplied identifier is safe to echo back.
func Valid(candidate string) bool {
	if candidate == "" || len(candidate) > 128 {
		return false
	}
	for _, r := range candidate {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
