package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/otpstore"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
)

const redemptionKind = string(otpstore.KindRedemption)

// RedemptionService issues and confirms offer redemption OTPs and reports the
// redemption state when a category B card is scanned.
type RedemptionService struct {
	cards         repository.CardRepository
	redemptions   otpstore.RedemptionStore
	tokens        TokenIssuer
	notifier      OTPNotifier
	newCode       CodeGenerator
	maxAttempts   int
	redemptionTTL time.Duration
}

type RedemptionServiceOptions struct {
	MaxCodeAttempts int
	RedemptionTTL   time.Duration
	CodeGenerator   CodeGenerator
}

func NewRedemptionService(
	cards repository.CardRepository,
	redemptions otpstore.RedemptionStore,
	tokens TokenIssuer,
	notifier OTPNotifier,
	opts RedemptionServiceOptions,
) *RedemptionService {
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = 20
	}
	if opts.RedemptionTTL <= 0 {
		opts.RedemptionTTL = 1800 * time.Second
	}
	if opts.CodeGenerator == nil {
		opts.CodeGenerator = security.NewOTPCode
	}
	return &RedemptionService{
		cards:         cards,
		redemptions:   redemptions,
		tokens:        tokens,
		notifier:      notifier,
		newCode:       opts.CodeGenerator,
		maxAttempts:   opts.MaxCodeAttempts,
		redemptionTTL: opts.RedemptionTTL,
	}
}

func (s *RedemptionService) RequestRedemptionOTP(ctx context.Context, cardID, brand string) (*OTPIssueResult, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, validationError(i18n.MsgInvalidRequest)
	}
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !card.OTPEnabled() {
		observability.RecordOTPEvent(ctx, redemptionKind, "issue", "disabled")
		return nil, validationError(i18n.MsgRedemptionOTPDisabled)
	}

	existing, err := s.redemptions.FindRedemption(ctx, card.ID)
	if err == nil {
		return nil, s.occupiedError(ctx, existing)
	}
	if !errors.Is(err, otpstore.ErrNotFound) {
		return nil, fmt.Errorf("find redemption otp: %w", err)
	}

	record, err := issueCode(ctx, otpstore.KindRedemption, s.newCode, s.maxAttempts, func(code string) (*domain.RedemptionOTP, error) {
		return s.redemptions.CreateRedemption(ctx, card.ID, brand, code)
	})
	if errors.Is(err, otpstore.ErrRecordExists) {
		// Lost a race with a concurrent request; report what is there now.
		current, findErr := s.redemptions.FindRedemption(ctx, card.ID)
		if findErr != nil {
			return nil, conflictError(http.StatusConflict, i18n.MsgRedemptionPending)
		}
		return nil, s.occupiedError(ctx, current)
	}
	if err != nil {
		return nil, err
	}

	expiresAt := record.CreatedAt.Add(s.redemptionTTL)
	if err := s.notifier.SendRedemptionCode(ctx, OTPNotification{
		CardID:      card.ID,
		PhoneNumber: card.PhoneNumber,
		Code:        record.Code,
		Brand:       brand,
		ExpiresAt:   expiresAt,
	}); err != nil {
		observability.RecordOTPEvent(ctx, redemptionKind, "issue", "notify_failed")
		return nil, fmt.Errorf("send redemption code: %w", err)
	}
	observability.RecordOTPEvent(ctx, redemptionKind, "issue", "created")
	return &OTPIssueResult{Brand: brand, ExpiresAt: expiresAt, MessageID: i18n.MsgRedemptionCodeSent}, nil
}

func (s *RedemptionService) VerifyRedemptionOTP(ctx context.Context, cardID, code string) (*RedemptionResult, error) {
	record, err := s.redemptions.FindRedemption(ctx, cardID)
	if errors.Is(err, otpstore.ErrNotFound) {
		observability.RecordOTPEvent(ctx, redemptionKind, "verify", "no_active_offer")
		return nil, notFoundError(http.StatusBadRequest, i18n.MsgRedemptionNoActiveOffer)
	}
	if err != nil {
		return nil, fmt.Errorf("find redemption otp: %w", err)
	}
	if !codesEqual(record.Code, code) {
		observability.RecordOTPEvent(ctx, redemptionKind, "verify", "mismatch")
		return nil, validationError(i18n.MsgRedemptionCodeMismatch)
	}
	if err := s.redemptions.MarkRedemptionVerified(ctx, cardID); err != nil {
		if errors.Is(err, otpstore.ErrNotFound) {
			// Expired between the read and the update.
			return nil, notFoundError(http.StatusBadRequest, i18n.MsgRedemptionNoActiveOffer)
		}
		return nil, fmt.Errorf("mark redemption verified: %w", err)
	}
	observability.RecordOTPEvent(ctx, redemptionKind, "verify", "success")
	return &RedemptionResult{Brand: record.Brand, OTPVerified: true, MessageID: i18n.MsgRedemptionVerified}, nil
}

// ResolveScanCase reports the redemption state for a card. It never mutates
// anything.
func (s *RedemptionService) ResolveScanCase(ctx context.Context, cardID string) (*ScanResult, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return s.resolveScanCase(ctx, card)
}

func (s *RedemptionService) resolveScanCase(ctx context.Context, card *domain.Card) (*ScanResult, error) {
	res := &ScanResult{
		ID:          card.ID,
		Name:        card.Name,
		CardNumber:  card.CardNumber,
		PhoneNumber: card.PhoneNumber,
		UserType:    card.UserType,
		IsLoggedIn:  card.IsLoggedIn,
		OTPStatus:   card.OTPStatus,
	}

	record, err := s.redemptions.FindRedemption(ctx, card.ID)
	switch {
	case errors.Is(err, otpstore.ErrNotFound):
		token, err := s.tokens.SignAppToken(tokenSubject(card))
		if err != nil {
			return nil, fmt.Errorf("sign app token: %w", err)
		}
		res.Token = token
		res.MessageID = i18n.MsgScanNoTransaction
	case err != nil:
		return nil, fmt.Errorf("find redemption otp: %w", err)
	case record.OTPVerified:
		res.Sign = true
		res.Brand = record.Brand
		res.MessageID = i18n.MsgScanAccepted
		res.MessageData = map[string]any{"Brand": record.Brand}
	default:
		res.Brand = record.Brand
		res.MessageID = i18n.MsgScanNotAccepted
	}
	return res, nil
}

func (s *RedemptionService) occupiedError(ctx context.Context, rec *domain.RedemptionOTP) error {
	if rec.OTPVerified {
		observability.RecordOTPEvent(ctx, redemptionKind, "issue", "already_redeemed")
		return conflictError(http.StatusConflict, i18n.MsgRedemptionRedeemed)
	}
	observability.RecordOTPEvent(ctx, redemptionKind, "issue", "pending")
	return conflictError(http.StatusConflict, i18n.MsgRedemptionPending)
}

func (s *RedemptionService) findCard(ctx context.Context, cardID string) (*domain.Card, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, cardNotFoundError()
		}
		return nil, fmt.Errorf("find card: %w", err)
	}
	return card, nil
}
