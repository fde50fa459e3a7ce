package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type PINHasher interface {
	Hash(pin string) (string, error)
	Compare(pin, digest string) bool
}

type BcryptPINHasher struct {
	cost int
}

func NewBcryptPINHasher(cost int) *BcryptPINHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPINHasher{cost: cost}
}

func (h *BcryptPINHasher) Hash(pin string) (string, error) {
	if pin == "" {
		return "", errors.New("pin is empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(digest), nil
}

// Compare reports whether pin matches digest. Malformed digests never match.
func (h *BcryptPINHasher) Compare(pin, digest string) bool {
	if pin == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pin)) == nil
}
