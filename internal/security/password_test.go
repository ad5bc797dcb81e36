package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hash == "cat" {
		t.Fatal("hash should not equal the plaintext")
	}

	if !hasher.Check(hash, "cat") {
		t.Error("correct password should verify")
	}
	if hasher.Check(hash, "dog") {
		t.Error("wrong password should not verify")
	}
}

func TestBcryptHasher_SaltedHashes(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	a, err := hasher.Hash("cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := hasher.Hash("cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Salting makes every hash unique even for the same input
	if a == b {
		t.Error("two hashes of the same password should differ")
	}

	if !hasher.Check(a, "cat") || !hasher.Check(b, "cat") {
		t.Error("both hashes should verify against the original password")
	}
}

func TestBcryptHasher_DefaultCost(t *testing.T) {
	hasher := NewBcryptHasher(0)

	hash, err := hasher.Hash("cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("not a bcrypt hash: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}

	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash = %q, want bcrypt format", hash)
	}
}
