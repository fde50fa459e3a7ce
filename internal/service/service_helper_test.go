package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/otpstore"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/security"
)

const (
	testCardA = "0f8fad5b-d9cb-469f-a165-70867728950e"
	testCardB = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

type captureNotifier struct {
	mu         sync.Mutex
	recovery   []OTPNotification
	redemption []OTPNotification
	err        error
}

func (n *captureNotifier) SendRecoveryCode(_ context.Context, notification OTPNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.recovery = append(n.recovery, notification)
	return nil
}

func (n *captureNotifier) SendRedemptionCode(_ context.Context, notification OTPNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.redemption = append(n.redemption, notification)
	return nil
}

// sequenceCodes hands out the given codes in order and then fails.
func sequenceCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(codes) {
			return "", errors.New("code sequence exhausted")
		}
		c := codes[i]
		i++
		return c, nil
	}
}

type cardFlowFixture struct {
	cards       repository.CardRepository
	qrCodes     repository.QRCodeRepository
	store       *otpstore.MemoryStore
	tokens      *security.JWTManager
	hasher      *security.BcryptPINHasher
	notifier    *captureNotifier
	redemptions *RedemptionService
	svc         *CardService
	seq         int
}

func newCardFlowFixture(t *testing.T, codes CodeGenerator) *cardFlowFixture {
	t.Helper()
	db := newServiceDBForTest(t)
	f := &cardFlowFixture{
		cards:    repository.NewCardRepository(db),
		qrCodes:  repository.NewQRCodeRepository(db),
		store:    otpstore.NewMemoryStore(otpstore.TTLs{}),
		tokens:   security.NewJWTManager("whitecard-test", "scan-secret", "app-secret", "reset-secret", time.Hour, 5*time.Minute),
		hasher:   security.NewBcryptPINHasher(bcrypt.MinCost),
		notifier: &captureNotifier{},
	}
	f.redemptions = NewRedemptionService(f.cards, f.store, f.tokens, f.notifier, RedemptionServiceOptions{CodeGenerator: codes})
	f.svc = NewCardService(f.cards, f.store, f.hasher, f.tokens, f.notifier, f.redemptions, CardServiceOptions{CodeGenerator: codes})
	return f
}

func (f *cardFlowFixture) seedCard(t *testing.T, card domain.Card) *domain.Card {
	t.Helper()
	if card.Name == "" {
		card.Name = "holder"
	}
	if card.CardNumber == "" {
		f.seq++
		card.CardNumber = fmt.Sprintf("40000000%08d", f.seq)
	}
	if card.OTPStatus == "" {
		card.OTPStatus = domain.OTPStatusDisabled
	}
	if err := f.cards.Create(context.Background(), &card); err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return &card
}

func newServiceDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Card{}, &domain.QRCode{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireDomainError(t *testing.T, err error, status int, messageID string) *DomainError {
	t.Helper()
	de, ok := AsDomainError(err)
	if !ok {
		t.Fatalf("expected domain error %s, got %v", messageID, err)
	}
	if de.Status != status || de.MessageID != messageID {
		t.Fatalf("expected %d/%s, got %d/%s", status, messageID, de.Status, de.MessageID)
	}
	return de
}
