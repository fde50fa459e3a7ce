package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	OTPDigits        = 4
	CardNumberDigits = 16
)

// RandomDigits returns a zero-padded decimal string of the given length drawn
// from crypto/rand.
func RandomDigits(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("unsupported digit count %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("read random digits: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

func NewOTPCode() (string, error) {
	return RandomDigits(OTPDigits)
}

// NewCardNumber returns a 16 digit card number that never starts with zero.
func NewCardNumber() (string, error) {
	lead, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return "", fmt.Errorf("read card number prefix: %w", err)
	}
	rest, err := RandomDigits(CardNumberDigits - 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d%s", lead.Int64()+1, rest), nil
}
