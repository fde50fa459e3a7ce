package domain

import "time"

// RecoveryOTP gates a forgotten-PIN reset. Expiry is enforced by the store.
type RecoveryOTP struct {
	UserID      string    `json:"userId"`
	Code        string    `json:"-"`
	OTPVerified bool      `json:"otpVerified"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RedemptionOTP gates confirmation of an offer redemption for one brand.
type RedemptionOTP struct {
	UserID      string    `json:"userId"`
	Brand       string    `json:"brand"`
	Code        string    `json:"-"`
	OTPVerified bool      `json:"otpVerified"`
	CreatedAt   time.Time `json:"createdAt"`
}
