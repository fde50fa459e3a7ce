package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptPINHasherHashAndCompare(t *testing.T) {
	h := NewBcryptPINHasher(bcrypt.MinCost)
	digest, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if digest == "123456" || !strings.HasPrefix(digest, "$2") {
		t.Fatalf("expected bcrypt digest, got %q", digest)
	}
	if !h.Compare("123456", digest) {
		t.Fatal("expected pin comparison success")
	}
	if h.Compare("654321", digest) {
		t.Fatal("expected pin comparison failure")
	}
}

func TestBcryptPINHasherRejectsEmptyInput(t *testing.T) {
	h := NewBcryptPINHasher(bcrypt.MinCost)
	if _, err := h.Hash(""); err == nil {
		t.Fatal("expected error hashing empty pin")
	}
	if h.Compare("", "$2a$04$abc") {
		t.Fatal("empty pin must never match")
	}
	if h.Compare("123456", "not-a-digest") {
		t.Fatal("malformed digest must never match")
	}
}

func TestNewBcryptPINHasherClampsCost(t *testing.T) {
	if got := NewBcryptPINHasher(99).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost for out of range input, got %d", got)
	}
}
