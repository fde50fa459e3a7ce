package domain

import "time"

type CardCategory string

const (
	// CardCategoryA cards are pre-verified and get an app token straight after first login.
	CardCategoryA CardCategory = "A"
	// CardCategoryB cards are gated on the holder's redemption OTP state at scan time.
	CardCategoryB CardCategory = "B"
)

func (c CardCategory) Valid() bool {
	return c == CardCategoryA || c == CardCategoryB
}

type OTPStatus string

const (
	OTPStatusEnabled  OTPStatus = "enabled"
	OTPStatusDisabled OTPStatus = "disabled"
)

func (s OTPStatus) Valid() bool {
	return s == OTPStatusEnabled || s == OTPStatusDisabled
}

// Card is the holder record behind a physical QR card. PINHash stays nil until
// first login completes.
type Card struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	Name        string       `gorm:"size:120;not null" json:"name"`
	CardNumber  string       `gorm:"uniqueIndex;size:16;not null" json:"cardNumber"`
	UserType    CardCategory `gorm:"size:1;not null;index:idx_cards_user_type" json:"userType"`
	PhoneNumber string       `gorm:"size:15" json:"phoneNumber"`
	PINHash     *string      `gorm:"size:255" json:"-"`
	IsVerified  bool         `gorm:"not null;default:false" json:"isVerified"`
	IsLoggedIn  bool         `gorm:"not null;default:false" json:"isLoggedIn"`
	OTPStatus   OTPStatus    `gorm:"size:16;not null;default:disabled" json:"otpStatus"`
	IsAdmin     bool         `gorm:"not null;default:false" json:"isAdmin"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (c *Card) OTPEnabled() bool {
	return c != nil && c.OTPStatus == OTPStatusEnabled
}
