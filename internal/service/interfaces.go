package service

import (
	"context"
	"time"

	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
)

// TokenIssuer is the subset of security.JWTManager the card flows need.
type TokenIssuer interface {
	SignScanToken(sub security.TokenSubject) (string, error)
	SignAppToken(sub security.TokenSubject) (string, error)
	SignResetToken(cardID string) (string, error)
	ParseScanToken(raw string) (*security.Claims, error)
	ParseResetToken(raw, cardID string) (*security.Claims, error)
	AppTokenTTL() time.Duration
	ResetTokenTTL() time.Duration
}

// CodeGenerator returns a fresh candidate code. Uniqueness is checked by the
// caller against persisted state.
type CodeGenerator func() (string, error)

type CardServiceInterface interface {
	ScanCard(ctx context.Context, cardID string) (*ScanResult, error)
	ScanCardWithToken(ctx context.Context, scanToken string) (*ScanResult, error)
	FirstLogin(ctx context.Context, cardID, pin string) (*AuthResult, error)
	VerifyPIN(ctx context.Context, cardID, pin string) (*AuthResult, error)
	RequestPINReset(ctx context.Context, cardID string) (*OTPIssueResult, error)
	VerifyPINReset(ctx context.Context, cardID, code string) (*PINResetResult, error)
	ResetPIN(ctx context.Context, cardID, newPIN, resetToken string) error
}

type RedemptionServiceInterface interface {
	RequestRedemptionOTP(ctx context.Context, cardID, brand string) (*OTPIssueResult, error)
	VerifyRedemptionOTP(ctx context.Context, cardID, code string) (*RedemptionResult, error)
	ResolveScanCase(ctx context.Context, cardID string) (*ScanResult, error)
}

type CardAdminServiceInterface interface {
	CreateCard(ctx context.Context, in CreateCardInput) (*IssuedCard, error)
	ActivateCard(ctx context.Context, cardNumber string) (*CardSummary, error)
	DeactivateCard(ctx context.Context, cardNumber string) (*CardSummary, error)
	RemoveCard(ctx context.Context, cardID string) error
	ListQRCodes(ctx context.Context, req repository.PageRequest) (*QRCodePage, error)
}
