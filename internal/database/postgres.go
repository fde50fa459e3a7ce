package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whitecard/whitecard-backend/internal/config"
	"github.com/whitecard/whitecard-backend/internal/observability"
)

const sqliteScheme = "sqlite://"

// Open connects to postgres, or to sqlite when DATABASE_URL starts with
// sqlite://. Driver errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey.
func Open(cfg *config.Config) (*gorm.DB, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "open", time.Since(start))
	}()

	dialector, err := dialectorFor(cfg.DatabaseURL)
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "open", "error")
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "open", "error")
		return nil, fmt.Errorf("open database: %w", err)
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "open", "success")
	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return nil, fmt.Errorf("database url is empty")
	case strings.HasPrefix(url, sqliteScheme):
		return sqlite.Open(strings.TrimPrefix(url, sqliteScheme)), nil
	default:
		return postgres.Open(url), nil
	}
}
