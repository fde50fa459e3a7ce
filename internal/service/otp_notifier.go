package service

import (
	"context"
	"log/slog"
	"time"
)

type OTPNotification struct {
	CardID      string
	PhoneNumber string
	Code        string
	Brand       string
	ExpiresAt   time.Time
}

// OTPNotifier delivers codes to the card holder. SMS delivery is not part of
// this service; deployments plug in their own sender.
type OTPNotifier interface {
	SendRecoveryCode(ctx context.Context, n OTPNotification) error
	SendRedemptionCode(ctx context.Context, n OTPNotification) error
}

// DevOTPNotifier writes codes to the log. Local environments only.
type DevOTPNotifier struct {
	logger *slog.Logger
}

func NewDevOTPNotifier(logger *slog.Logger) *DevOTPNotifier {
	return &DevOTPNotifier{logger: logger}
}

func (n *DevOTPNotifier) SendRecoveryCode(ctx context.Context, notification OTPNotification) error {
	n.logger.InfoContext(ctx, "recovery otp issued",
		"card_id", notification.CardID,
		"phone", maskPhone(notification.PhoneNumber),
		"expires_at", notification.ExpiresAt,
		"code", notification.Code,
	)
	return nil
}

func (n *DevOTPNotifier) SendRedemptionCode(ctx context.Context, notification OTPNotification) error {
	n.logger.InfoContext(ctx, "redemption otp issued",
		"card_id", notification.CardID,
		"phone", maskPhone(notification.PhoneNumber),
		"brand", notification.Brand,
		"expires_at", notification.ExpiresAt,
		"code", notification.Code,
	)
	return nil
}

// LogOnlyOTPNotifier records that a code went out without logging the code.
// Used outside local environments until an SMS sender is configured.
type LogOnlyOTPNotifier struct {
	logger *slog.Logger
}

func NewLogOnlyOTPNotifier(logger *slog.Logger) *LogOnlyOTPNotifier {
	return &LogOnlyOTPNotifier{logger: logger}
}

func (n *LogOnlyOTPNotifier) SendRecoveryCode(ctx context.Context, notification OTPNotification) error {
	n.logger.InfoContext(ctx, "recovery otp issued", "card_id", notification.CardID, "phone", maskPhone(notification.PhoneNumber))
	return nil
}

func (n *LogOnlyOTPNotifier) SendRedemptionCode(ctx context.Context, notification OTPNotification) error {
	n.logger.InfoContext(ctx, "redemption otp issued", "card_id", notification.CardID, "phone", maskPhone(notification.PhoneNumber), "brand", notification.Brand)
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
