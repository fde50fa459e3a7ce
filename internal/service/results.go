package service

import (
	"time"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/repository"
)

const (
	NextStepFirstLogin = "first_login"
	NextStepVerifyPIN  = "verify_pin"
)

// CardSummary is the card metadata safe to hand back to clients.
type CardSummary struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	CardNumber  string              `json:"cardNumber"`
	UserType    domain.CardCategory `json:"userType"`
	PhoneNumber string              `json:"phoneNumber,omitempty"`
	IsVerified  bool                `json:"isVerified"`
	IsLoggedIn  bool                `json:"isLoggedIn"`
	OTPStatus   domain.OTPStatus    `json:"otpStatus"`
	IsAdmin     bool                `json:"isAdmin"`
}

func summarize(c *domain.Card) *CardSummary {
	return &CardSummary{
		ID:          c.ID,
		Name:        c.Name,
		CardNumber:  c.CardNumber,
		UserType:    c.UserType,
		PhoneNumber: c.PhoneNumber,
		IsVerified:  c.IsVerified,
		IsLoggedIn:  c.IsLoggedIn,
		OTPStatus:   c.OTPStatus,
		IsAdmin:     c.IsAdmin,
	}
}

// ScanResult is the outcome of scanning a verified card. MessageID and
// MessageData feed the localized response message.
type ScanResult struct {
	Sign        bool                `json:"sign"`
	ID          string              `json:"id"`
	CardNumber  string              `json:"cardNumber"`
	UserType    domain.CardCategory `json:"userType"`
	IsLoggedIn  bool                `json:"isLoggedIn"`
	OTPStatus   domain.OTPStatus    `json:"otpStatus"`
	NextStep    string              `json:"nextStep,omitempty"`
	Name        string              `json:"name,omitempty"`
	PhoneNumber string              `json:"phoneNumber,omitempty"`
	Brand       string              `json:"brand,omitempty"`
	Token       string              `json:"token,omitempty"`
	MessageID   string              `json:"-"`
	MessageData map[string]any      `json:"-"`
}

type AuthResult struct {
	Card      *CardSummary `json:"card"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
	MessageID string       `json:"-"`
}

type OTPIssueResult struct {
	Brand     string    `json:"brand,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	MessageID string    `json:"-"`
}

type PINResetResult struct {
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
	MessageID  string    `json:"-"`
}

type RedemptionResult struct {
	Brand       string `json:"brand"`
	OTPVerified bool   `json:"otpVerified"`
	MessageID   string `json:"-"`
}

type CreateCardInput struct {
	Name        string
	UserType    domain.CardCategory
	PhoneNumber string
	OTPStatus   domain.OTPStatus
	IsAdmin     bool
	// Verified issues the card already activated. Only the bootstrap CLI sets it.
	Verified bool
}

type IssuedCard struct {
	Card      *CardSummary   `json:"card"`
	QRCode    *domain.QRCode `json:"qrCode"`
	ScanToken string         `json:"scanToken"`
}

type QRCodePage = repository.PageResult[domain.QRCode]
