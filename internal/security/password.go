// Package security isolates password hashing behind a small capability
// interface so the algorithm can be swapped without touching services.
package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes raw passwords and verifies candidates against a
// stored hash. Implementations must never retain the plaintext.
type PasswordHasher interface {
	Hash(raw string) (string, error)
	Check(hash, raw string) bool
}

// BcryptHasher implements PasswordHasher with x/crypto bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher. Cost <= 0 uses bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the salted bcrypt hash of raw.
func (h *BcryptHasher) Hash(raw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Check reports whether raw matches the stored hash. bcrypt's comparison
// is constant-time over the derived key.
func (h *BcryptHasher) Check(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
