package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
)

// ScanURLBuilder returns the URL a card's QR code encodes.
type ScanURLBuilder func(cardID string) string

// CardNumberGenerator returns a candidate card number.
type CardNumberGenerator func() (string, error)

// CardAdminService issues cards and manages their activation state.
type CardAdminService struct {
	cards          repository.CardRepository
	qrCodes        repository.QRCodeRepository
	tokens         TokenIssuer
	encoder        security.QREncoder
	storage        QRStorage
	scanURL        ScanURLBuilder
	newCardNumber  CardNumberGenerator
	maxNumberTries int
	listCache      ListCacheStore
	listCacheTTL   time.Duration
	logger         *slog.Logger
}

type CardAdminOptions struct {
	MaxCardNumberAttempts int
	CardNumberGenerator   CardNumberGenerator
	ListCache             ListCacheStore
	ListCacheTTL          time.Duration
}

func NewCardAdminService(
	cards repository.CardRepository,
	qrCodes repository.QRCodeRepository,
	tokens TokenIssuer,
	encoder security.QREncoder,
	storage QRStorage,
	scanURL ScanURLBuilder,
	logger *slog.Logger,
	opts CardAdminOptions,
) *CardAdminService {
	if opts.MaxCardNumberAttempts <= 0 {
		opts.MaxCardNumberAttempts = 10
	}
	if opts.CardNumberGenerator == nil {
		opts.CardNumberGenerator = security.NewCardNumber
	}
	if storage == nil {
		storage = NoopQRStorage{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ListCache == nil {
		opts.ListCache = NoopListCacheStore{}
	}
	return &CardAdminService{
		cards:          cards,
		qrCodes:        qrCodes,
		tokens:         tokens,
		encoder:        encoder,
		storage:        storage,
		scanURL:        scanURL,
		newCardNumber:  opts.CardNumberGenerator,
		maxNumberTries: opts.MaxCardNumberAttempts,
		listCache:      opts.ListCache,
		listCacheTTL:   opts.ListCacheTTL,
		logger:         logger,
	}
}

func (s *CardAdminService) CreateCard(ctx context.Context, in CreateCardInput) (*IssuedCard, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || !in.UserType.Valid() {
		return nil, validationError(i18n.MsgInvalidRequest)
	}
	if in.OTPStatus == "" {
		in.OTPStatus = domain.OTPStatusDisabled
	}
	if !in.OTPStatus.Valid() {
		return nil, validationError(i18n.MsgInvalidRequest)
	}

	card := &domain.Card{
		ID:          uuid.NewString(),
		Name:        in.Name,
		UserType:    in.UserType,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		OTPStatus:   in.OTPStatus,
		IsAdmin:     in.IsAdmin,
		IsVerified:  in.Verified,
	}
	if err := s.insertWithFreshNumber(ctx, card); err != nil {
		observability.RecordCardAdminMutation(ctx, "create", "error")
		return nil, err
	}

	qr, token, err := s.issueQRCode(ctx, card)
	if err != nil {
		observability.RecordCardAdminMutation(ctx, "create", "error")
		return nil, err
	}
	observability.RecordCardAdminMutation(ctx, "create", "success")
	return &IssuedCard{Card: summarize(card), QRCode: qr, ScanToken: token}, nil
}

func (s *CardAdminService) ActivateCard(ctx context.Context, cardNumber string) (*CardSummary, error) {
	return s.setVerified(ctx, "activate", cardNumber, true)
}

func (s *CardAdminService) DeactivateCard(ctx context.Context, cardNumber string) (*CardSummary, error) {
	return s.setVerified(ctx, "deactivate", cardNumber, false)
}

func (s *CardAdminService) RemoveCard(ctx context.Context, cardID string) error {
	var objectKey string
	if qr, err := s.qrCodes.FindByCardID(ctx, cardID); err == nil {
		objectKey = qr.ObjectKey
	} else if !errors.Is(err, repository.ErrQRCodeNotFound) {
		return fmt.Errorf("find qr code: %w", err)
	}

	if err := s.cards.Delete(ctx, cardID); err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			observability.RecordCardAdminMutation(ctx, "remove", "not_found")
			return notFoundError(http.StatusNotFound, i18n.MsgCardNotFound)
		}
		observability.RecordCardAdminMutation(ctx, "remove", "error")
		return fmt.Errorf("delete card: %w", err)
	}
	s.invalidateQRList(ctx)
	if objectKey != "" {
		if err := s.storage.DeleteQRCode(ctx, objectKey); err != nil {
			observability.RecordQRStorageEvent(ctx, "delete", "error")
			s.logger.WarnContext(ctx, "qr image delete failed", "card_id", cardID, "object_key", objectKey, "error", err)
		} else {
			observability.RecordQRStorageEvent(ctx, "delete", "success")
		}
	}
	observability.RecordCardAdminMutation(ctx, "remove", "success")
	return nil
}

// ListQRCodes serves pages from the list cache when possible. Cached pages
// carry presigned URLs, so the cache TTL must stay below their lifetime.
func (s *CardAdminService) ListQRCodes(ctx context.Context, req repository.PageRequest) (*QRCodePage, error) {
	req = req.Normalized()
	key := qrListCacheKey(req.Page, req.PageSize)
	if raw, ok, err := s.listCache.Get(ctx, qrListNamespace, key); err != nil {
		observability.RecordAdminListCacheEvent(ctx, "qr_codes", "error")
		s.logger.WarnContext(ctx, "qr list cache read failed", "error", err)
	} else if ok {
		var cached QRCodePage
		if err := json.Unmarshal(raw, &cached); err == nil {
			observability.RecordAdminListCacheEvent(ctx, "qr_codes", "hit")
			return &cached, nil
		}
	}
	observability.RecordAdminListCacheEvent(ctx, "qr_codes", "miss")

	page, err := s.qrCodes.ListPaged(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	for i := range page.Items {
		if page.Items[i].ObjectKey == "" {
			continue
		}
		u, err := s.storage.QRCodeURL(ctx, page.Items[i].ObjectKey)
		if err != nil {
			s.logger.WarnContext(ctx, "qr image url failed", "object_key", page.Items[i].ObjectKey, "error", err)
			continue
		}
		page.Items[i].ImageURL = u
	}

	if raw, err := json.Marshal(page); err == nil {
		if err := s.listCache.Set(ctx, qrListNamespace, key, raw, s.listCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "qr list cache write failed", "error", err)
		}
	}
	return &page, nil
}

func (s *CardAdminService) invalidateQRList(ctx context.Context) {
	if err := s.listCache.InvalidateNamespace(ctx, qrListNamespace); err != nil {
		observability.RecordAdminListCacheEvent(ctx, "qr_codes", "invalidate_error")
		s.logger.WarnContext(ctx, "qr list cache invalidation failed", "error", err)
		return
	}
	observability.RecordAdminListCacheEvent(ctx, "qr_codes", "invalidated")
}

func (s *CardAdminService) setVerified(ctx context.Context, action, cardNumber string, verified bool) (*CardSummary, error) {
	card, err := s.cards.FindByCardNumber(ctx, strings.TrimSpace(cardNumber))
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			observability.RecordCardAdminMutation(ctx, action, "not_found")
			return nil, notFoundError(http.StatusNotFound, i18n.MsgCardNotFound)
		}
		return nil, fmt.Errorf("find card: %w", err)
	}
	changed, err := s.cards.SetVerified(ctx, card.ID, verified)
	if err != nil {
		observability.RecordCardAdminMutation(ctx, action, "error")
		return nil, fmt.Errorf("%s card: %w", action, err)
	}
	if !changed {
		observability.RecordCardAdminMutation(ctx, action, "noop")
		if verified {
			return nil, conflictError(http.StatusConflict, i18n.MsgCardAlreadyActive)
		}
		return nil, conflictError(http.StatusConflict, i18n.MsgCardAlreadyInactive)
	}
	card.IsVerified = verified

	token, err := s.tokens.SignScanToken(tokenSubject(card))
	if err != nil {
		return nil, fmt.Errorf("sign scan token: %w", err)
	}
	if err := s.qrCodes.UpdateScanToken(ctx, card.ID, token); err != nil {
		if !errors.Is(err, repository.ErrQRCodeNotFound) {
			return nil, fmt.Errorf("update qr scan token: %w", err)
		}
		// Cards issued before QR records existed get one now.
		if _, _, err := s.issueQRCode(ctx, card); err != nil {
			return nil, err
		}
	}
	observability.RecordCardAdminMutation(ctx, action, "success")
	return summarize(card), nil
}

func (s *CardAdminService) insertWithFreshNumber(ctx context.Context, card *domain.Card) error {
	for attempt := 0; attempt < s.maxNumberTries; attempt++ {
		number, err := s.newCardNumber()
		if err != nil {
			return fmt.Errorf("generate card number: %w", err)
		}
		taken, err := s.cards.CardNumberExists(ctx, number)
		if err != nil {
			return fmt.Errorf("check card number: %w", err)
		}
		if taken {
			continue
		}
		card.CardNumber = number
		err = s.cards.Create(ctx, card)
		if errors.Is(err, repository.ErrCardNumberTaken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create card: %w", err)
		}
		return nil
	}
	return fmt.Errorf("create card: no free card number after %d attempts", s.maxNumberTries)
}

func (s *CardAdminService) issueQRCode(ctx context.Context, card *domain.Card) (*domain.QRCode, string, error) {
	token, err := s.tokens.SignScanToken(tokenSubject(card))
	if err != nil {
		return nil, "", fmt.Errorf("sign scan token: %w", err)
	}
	scanURL := s.scanURL(card.ID)
	png, err := s.encoder.Encode(scanURL)
	if err != nil {
		return nil, "", fmt.Errorf("encode qr: %w", err)
	}

	objectKey, err := s.storage.PutQRCode(ctx, card.ID, png)
	switch {
	case err != nil:
		observability.RecordQRStorageEvent(ctx, "upload", "error")
		s.logger.WarnContext(ctx, "qr image upload failed", "card_id", card.ID, "error", err)
	case objectKey != "":
		observability.RecordQRStorageEvent(ctx, "upload", "success")
	}

	qr := &domain.QRCode{
		CardID:     card.ID,
		CardNumber: card.CardNumber,
		HolderName: card.Name,
		ScanURL:    scanURL,
		ImagePNG:   base64.StdEncoding.EncodeToString(png),
		ObjectKey:  objectKey,
		ScanToken:  token,
	}
	if err := s.qrCodes.Upsert(ctx, qr); err != nil {
		return nil, "", fmt.Errorf("save qr code: %w", err)
	}
	s.invalidateQRList(ctx)
	return qr, token, nil
}
