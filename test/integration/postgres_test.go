package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/whitecard/whitecard-backend/internal/config"
	"github.com/whitecard/whitecard-backend/internal/database"
	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/health"
	"github.com/whitecard/whitecard-backend/internal/repository"
)

func TestPostgresCardRepository(t *testing.T) {
	db, err := database.Open(&config.Config{DatabaseURL: newPostgresURL(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	ctx := context.Background()
	runner := health.NewProbeRunner(5*time.Second, 0, health.NewDBChecker(db))
	if ready, checks := runner.Ready(ctx); !ready {
		t.Fatalf("expected postgres readiness, got %+v", checks)
	}

	repo := repository.NewCardRepository(db)
	card := &domain.Card{ID: uuid.NewString(), Name: "Sara", CardNumber: "4000123412341234", UserType: domain.CardCategoryA, IsVerified: true, OTPStatus: domain.OTPStatusDisabled}
	if err := repo.Create(ctx, card); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := &domain.Card{ID: uuid.NewString(), Name: "Other", CardNumber: card.CardNumber, UserType: domain.CardCategoryB, OTPStatus: domain.OTPStatusDisabled}
	if err := repo.Create(ctx, dup); !errors.Is(err, repository.ErrCardNumberTaken) {
		t.Fatalf("expected ErrCardNumberTaken on postgres unique violation, got %v", err)
	}

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.CompleteFirstLogin(ctx, card.ID, "hash")
			if err != nil {
				t.Errorf("CompleteFirstLogin: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one first login to win, got %d", got)
	}

	if err := repo.Delete(ctx, card.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, card.ID); !errors.Is(err, repository.ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound after delete, got %v", err)
	}
}
