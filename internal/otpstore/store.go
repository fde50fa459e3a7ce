// Package otpstore holds the short-lived recovery and redemption OTP records.
// Records expire through store-side TTLs; nothing in the application sweeps
// them.
package otpstore

import (
	"context"
	"errors"
	"time"

	"github.com/whitecard/whitecard-backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("otp record not found")
	ErrRecordExists = errors.New("otp record already exists")
	// ErrCodeInUse means another live record of the same kind holds the code.
	ErrCodeInUse = errors.New("otp code already issued")
	// ErrTokenUsed means a reset-authorization token was already redeemed.
	ErrTokenUsed = errors.New("reset token already used")
)

type Kind string

const (
	KindRecovery   Kind = "recovery"
	KindRedemption Kind = "redemption"
)

type RecoveryStore interface {
	FindRecovery(ctx context.Context, userID string) (*domain.RecoveryOTP, error)
	// CreateRecovery stores a new unverified record. It fails with
	// ErrRecordExists while an unverified record is live for the user.
	CreateRecovery(ctx context.Context, userID, code string) (*domain.RecoveryOTP, error)
	DeleteRecovery(ctx context.Context, userID string) error
	// ConsumeResetToken marks a reset token id as spent for ttl. A second call
	// with the same id fails with ErrTokenUsed.
	ConsumeResetToken(ctx context.Context, tokenID string, ttl time.Duration) error
}

type RedemptionStore interface {
	FindRedemption(ctx context.Context, userID string) (*domain.RedemptionOTP, error)
	// CreateRedemption fails with ErrRecordExists while any record, verified
	// or not, is live for the user.
	CreateRedemption(ctx context.Context, userID, brand, code string) (*domain.RedemptionOTP, error)
	// MarkRedemptionVerified flips the verified flag in place and keeps the
	// remaining TTL.
	MarkRedemptionVerified(ctx context.Context, userID string) error
}

type Store interface {
	RecoveryStore
	RedemptionStore
}

type TTLs struct {
	Recovery   time.Duration
	Redemption time.Duration
}

func (t TTLs) normalize() TTLs {
	if t.Recovery <= 0 {
		t.Recovery = 300 * time.Second
	}
	if t.Redemption <= 0 {
		t.Redemption = 1800 * time.Second
	}
	return t
}

func (t TTLs) forKind(kind Kind) time.Duration {
	if kind == KindRedemption {
		return t.Redemption
	}
	return t.Recovery
}

// blocksVerified reports whether a verified record still occupies the slot.
// Redemption records do until they expire; recovery records only block while
// unverified.
func blocksVerified(kind Kind) bool {
	return kind == KindRedemption
}
