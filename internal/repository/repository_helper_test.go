package repository

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whitecard/whitecard-backend/internal/domain"
)

func newRepositoryDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
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

func seedCardForTest(t *testing.T, repo CardRepository, id, number string, category domain.CardCategory) *domain.Card {
	t.Helper()
	card := &domain.Card{
		ID:          id,
		Name:        "holder " + id,
		CardNumber:  number,
		UserType:    category,
		PhoneNumber: "0500000000",
		OTPStatus:   domain.OTPStatusDisabled,
	}
	if err := repo.Create(t.Context(), card); err != nil {
		t.Fatalf("create card %s: %v", id, err)
	}
	return card
}
