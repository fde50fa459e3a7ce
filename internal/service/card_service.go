package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/otpstore"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
)

// CardService runs the holder side of the card lifecycle: scan, first login,
// PIN verification and the forgotten-PIN recovery flow.
type CardService struct {
	cards       repository.CardRepository
	recovery    otpstore.RecoveryStore
	hasher      security.PINHasher
	tokens      TokenIssuer
	notifier    OTPNotifier
	redemptions *RedemptionService
	newCode     CodeGenerator
	maxAttempts int
	recoveryTTL time.Duration
	now         func() time.Time
}

type CardServiceOptions struct {
	MaxCodeAttempts int
	RecoveryTTL     time.Duration
	CodeGenerator   CodeGenerator
}

func NewCardService(
	cards repository.CardRepository,
	recovery otpstore.RecoveryStore,
	hasher security.PINHasher,
	tokens TokenIssuer,
	notifier OTPNotifier,
	redemptions *RedemptionService,
	opts CardServiceOptions,
) *CardService {
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = 20
	}
	if opts.RecoveryTTL <= 0 {
		opts.RecoveryTTL = 300 * time.Second
	}
	if opts.CodeGenerator == nil {
		opts.CodeGenerator = security.NewOTPCode
	}
	return &CardService{
		cards:       cards,
		recovery:    recovery,
		hasher:      hasher,
		tokens:      tokens,
		notifier:    notifier,
		redemptions: redemptions,
		newCode:     opts.CodeGenerator,
		maxAttempts: opts.MaxCodeAttempts,
		recoveryTTL: opts.RecoveryTTL,
		now:         time.Now,
	}
}

func (s *CardService) ScanCard(ctx context.Context, cardID string) (*ScanResult, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(cardID))
	if err != nil {
		observability.RecordCardScan(ctx, "unknown", "bad_identity")
		return nil, cardIdentityError()
	}
	// Braced, urn and upper-case forms resolve to the stored canonical id.
	card, err := s.cards.FindByID(ctx, parsed.String())
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			observability.RecordCardScan(ctx, "unknown", "not_found")
			return nil, cardNotFoundError()
		}
		return nil, fmt.Errorf("scan card: %w", err)
	}
	if !card.IsVerified {
		observability.RecordCardScan(ctx, string(card.UserType), "invalid")
		return nil, cardInvalidError()
	}

	if card.UserType == domain.CardCategoryB {
		res, err := s.redemptions.resolveScanCase(ctx, card)
		if err != nil {
			return nil, err
		}
		observability.RecordCardScan(ctx, string(card.UserType), scanOutcome(res.Sign))
		return res, nil
	}

	next := NextStepVerifyPIN
	if !card.IsLoggedIn {
		next = NextStepFirstLogin
	}
	observability.RecordCardScan(ctx, string(card.UserType), "ok")
	return &ScanResult{
		Sign:       true,
		ID:         card.ID,
		CardNumber: card.CardNumber,
		UserType:   card.UserType,
		IsLoggedIn: card.IsLoggedIn,
		OTPStatus:  card.OTPStatus,
		NextStep:   next,
		MessageID:  i18n.MsgCardScanned,
	}, nil
}

// ScanCardWithToken resolves the card from a signed scan token instead of a
// bare card id.
func (s *CardService) ScanCardWithToken(ctx context.Context, scanToken string) (*ScanResult, error) {
	claims, err := s.tokens.ParseScanToken(scanToken)
	if err != nil {
		observability.RecordCardScan(ctx, "unknown", "bad_identity")
		return nil, cardIdentityError()
	}
	return s.ScanCard(ctx, claims.Subject)
}

// FirstLogin answers "already set" for any logged-in card before looking at
// the PIN or the card's verified flag.
func (s *CardService) FirstLogin(ctx context.Context, cardID, pin string) (*AuthResult, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.IsLoggedIn {
		observability.RecordPINEvent(ctx, "first_login", "already_set")
		return nil, conflictError(http.StatusConflict, i18n.MsgPINAlreadySet)
	}
	if strings.TrimSpace(pin) == "" {
		return nil, validationError(i18n.MsgPINRequired)
	}
	if !card.IsVerified {
		observability.RecordPINEvent(ctx, "first_login", "card_invalid")
		return nil, cardInvalidError()
	}

	digest, err := s.hasher.Hash(pin)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	applied, err := s.cards.CompleteFirstLogin(ctx, card.ID, digest)
	if err != nil {
		return nil, fmt.Errorf("complete first login: %w", err)
	}
	if !applied {
		// A concurrent first login won the conditional update.
		observability.RecordPINEvent(ctx, "first_login", "already_set")
		return nil, conflictError(http.StatusConflict, i18n.MsgPINAlreadySet)
	}
	card.IsLoggedIn = true
	card.PINHash = &digest
	observability.RecordPINEvent(ctx, "first_login", "success")

	res := &AuthResult{Card: summarize(card), MessageID: i18n.MsgFirstLoginCompleted}
	if card.UserType == domain.CardCategoryA {
		if err := s.attachAppToken(card, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// VerifyPIN returns the same error for an unknown card and a wrong PIN.
func (s *CardService) VerifyPIN(ctx context.Context, cardID, pin string) (*AuthResult, error) {
	mismatch := unauthorizedError(i18n.MsgPINMismatch)
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			observability.RecordPINEvent(ctx, "verify", "mismatch")
			return nil, mismatch
		}
		return nil, fmt.Errorf("verify pin: %w", err)
	}
	if !card.IsLoggedIn || card.PINHash == nil {
		observability.RecordPINEvent(ctx, "verify", "first_login_required")
		return nil, validationError(i18n.MsgFirstLoginRequired)
	}
	if !s.hasher.Compare(pin, *card.PINHash) {
		observability.RecordPINEvent(ctx, "verify", "mismatch")
		return nil, mismatch
	}
	if !card.IsVerified {
		observability.RecordPINEvent(ctx, "verify", "card_invalid")
		return nil, cardInvalidError()
	}

	res := &AuthResult{Card: summarize(card), MessageID: i18n.MsgPINVerified}
	if err := s.attachAppToken(card, res); err != nil {
		return nil, err
	}
	observability.RecordPINEvent(ctx, "verify", "success")
	return res, nil
}

func (s *CardService) RequestPINReset(ctx context.Context, cardID string) (*OTPIssueResult, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !card.IsLoggedIn {
		observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "issue", "first_login_required")
		return nil, validationError(i18n.MsgFirstLoginRequired)
	}
	existing, err := s.recovery.FindRecovery(ctx, card.ID)
	switch {
	case err == nil && !existing.OTPVerified:
		observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "issue", "pending")
		return nil, conflictError(http.StatusConflict, i18n.MsgRecoveryPending)
	case err != nil && !errors.Is(err, otpstore.ErrNotFound):
		return nil, fmt.Errorf("find recovery otp: %w", err)
	}

	record, err := issueCode(ctx, otpstore.KindRecovery, s.newCode, s.maxAttempts, func(code string) (*domain.RecoveryOTP, error) {
		return s.recovery.CreateRecovery(ctx, card.ID, code)
	})
	if errors.Is(err, otpstore.ErrRecordExists) {
		observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "issue", "pending")
		return nil, conflictError(http.StatusConflict, i18n.MsgRecoveryPending)
	}
	if err != nil {
		return nil, err
	}

	expiresAt := record.CreatedAt.Add(s.recoveryTTL)
	if err := s.notifier.SendRecoveryCode(ctx, OTPNotification{
		CardID:      card.ID,
		PhoneNumber: card.PhoneNumber,
		Code:        record.Code,
		ExpiresAt:   expiresAt,
	}); err != nil {
		// Free the slot so the holder can ask again straight away.
		observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "issue", "notify_failed")
		if delErr := s.recovery.DeleteRecovery(ctx, card.ID); delErr != nil {
			return nil, fmt.Errorf("send recovery code: %w (release recovery otp: %w)", err, delErr)
		}
		return nil, fmt.Errorf("send recovery code: %w", err)
	}
	observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "issue", "created")
	return &OTPIssueResult{ExpiresAt: expiresAt, MessageID: i18n.MsgRecoveryCodeSent}, nil
}

func (s *CardService) VerifyPINReset(ctx context.Context, cardID, code string) (*PINResetResult, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	record, err := s.recovery.FindRecovery(ctx, card.ID)
	if errors.Is(err, otpstore.ErrNotFound) {
		observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "verify", "no_request")
		return nil, notFoundError(http.StatusBadRequest, i18n.MsgRecoveryNoRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("find recovery otp: %w", err)
	}
	if !codesEqual(record.Code, code) {
		observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "verify", "mismatch")
		return nil, validationError(i18n.MsgRecoveryCodeMismatch)
	}
	if err := s.recovery.DeleteRecovery(ctx, card.ID); err != nil {
		return nil, fmt.Errorf("delete recovery otp: %w", err)
	}
	token, err := s.tokens.SignResetToken(card.ID)
	if err != nil {
		return nil, fmt.Errorf("sign reset token: %w", err)
	}
	observability.RecordOTPEvent(ctx, string(otpstore.KindRecovery), "verify", "success")
	return &PINResetResult{
		ResetToken: token,
		ExpiresAt:  s.now().Add(s.tokens.ResetTokenTTL()),
		MessageID:  i18n.MsgRecoveryCodeVerified,
	}, nil
}

func (s *CardService) ResetPIN(ctx context.Context, cardID, newPIN, resetToken string) error {
	if strings.TrimSpace(newPIN) == "" {
		return validationError(i18n.MsgPINRequired)
	}
	claims, err := s.tokens.ParseResetToken(resetToken, cardID)
	if err != nil {
		observability.RecordPINEvent(ctx, "reset", "unauthorized")
		return unauthorizedError(i18n.MsgResetTokenInvalid)
	}
	digest, err := s.hasher.Hash(newPIN)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	// A reset token works once; the spent marker lives as long as the token.
	ttl := s.tokens.ResetTokenTTL()
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if err := s.recovery.ConsumeResetToken(ctx, claims.ID, ttl); err != nil {
		if errors.Is(err, otpstore.ErrTokenUsed) {
			observability.RecordPINEvent(ctx, "reset", "token_reused")
			return unauthorizedError(i18n.MsgResetTokenInvalid)
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	if err := s.cards.UpdatePIN(ctx, cardID, digest); err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return cardNotFoundError()
		}
		return fmt.Errorf("update pin: %w", err)
	}
	observability.RecordPINEvent(ctx, "reset", "success")
	return nil
}

func (s *CardService) findCard(ctx context.Context, cardID string) (*domain.Card, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, cardNotFoundError()
		}
		return nil, fmt.Errorf("find card: %w", err)
	}
	return card, nil
}

func (s *CardService) attachAppToken(card *domain.Card, res *AuthResult) error {
	token, err := s.tokens.SignAppToken(tokenSubject(card))
	if err != nil {
		return fmt.Errorf("sign app token: %w", err)
	}
	expiresAt := s.now().Add(s.tokens.AppTokenTTL())
	res.Token = token
	res.ExpiresAt = &expiresAt
	return nil
}

func tokenSubject(card *domain.Card) security.TokenSubject {
	return security.TokenSubject{
		CardID:     card.ID,
		CardNumber: card.CardNumber,
		IsVerified: card.IsVerified,
		IsAdmin:    card.IsAdmin,
	}
}

// codesEqual is exact string equality in constant time.
func codesEqual(stored, submitted string) bool {
	return len(stored) == len(submitted) && subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

func scanOutcome(sign bool) string {
	if sign {
		return "ok"
	}
	return "unsigned"
}

// issueCode retries create with fresh codes until one is not held by another
// live record of the same kind.
func issueCode[T any](ctx context.Context, kind otpstore.Kind, gen CodeGenerator, maxAttempts int, create func(code string) (T, error)) (T, error) {
	var zero T
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := gen()
		if err != nil {
			return zero, fmt.Errorf("generate %s code: %w", kind, err)
		}
		rec, err := create(code)
		if errors.Is(err, otpstore.ErrCodeInUse) {
			continue
		}
		if err != nil {
			if errors.Is(err, otpstore.ErrRecordExists) {
				return zero, err
			}
			return zero, fmt.Errorf("create %s otp: %w", kind, err)
		}
		observability.RecordOTPGenerationAttempts(ctx, string(kind), attempt)
		return rec, nil
	}
	observability.RecordOTPEvent(ctx, string(kind), "issue", "exhausted")
	return zero, fmt.Errorf("create %s otp: no free code after %d attempts", kind, maxAttempts)
}
