package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/observability"
)

func Migrate(db *gorm.DB) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	}()
	if err := db.AutoMigrate(&domain.Card{}, &domain.QRCode{}); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return fmt.Errorf("auto migrate: %w", err)
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}
