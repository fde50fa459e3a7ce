package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/observability"
)

var (
	ErrCardNotFound    = errors.New("card not found")
	ErrCardNumberTaken = errors.New("card number already in use")
)

//go:generate mockgen -destination=gomock/card_repository_mock.go -package=gomock . CardRepository

type CardRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Card, error)
	FindByCardNumber(ctx context.Context, cardNumber string) (*domain.Card, error)
	CardNumberExists(ctx context.Context, cardNumber string) (bool, error)
	Create(ctx context.Context, card *domain.Card) error
	// CompleteFirstLogin stores the PIN digest and flips is_logged_in in one
	// conditional update. It reports false when the card was already logged
	// in or does not exist.
	CompleteFirstLogin(ctx context.Context, id, pinHash string) (bool, error)
	UpdatePIN(ctx context.Context, id, pinHash string) error
	// SetVerified reports false when the card already had the requested state.
	SetVerified(ctx context.Context, id string, verified bool) (bool, error)
	Delete(ctx context.Context, id string) error
}

type GormCardRepository struct{ db *gorm.DB }

func NewCardRepository(db *gorm.DB) CardRepository { return &GormCardRepository{db: db} }

func (r *GormCardRepository) FindByID(ctx context.Context, id string) (*domain.Card, error) {
	return r.findOne(ctx, "find_by_id", "id = ?", id)
}

func (r *GormCardRepository) FindByCardNumber(ctx context.Context, cardNumber string) (*domain.Card, error) {
	return r.findOne(ctx, "find_by_card_number", "card_number = ?", cardNumber)
}

func (r *GormCardRepository) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Card{}).Where("card_number = ?", cardNumber).Count(&count).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "card", "card_number_exists", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "card", "card_number_exists", "success")
	return count > 0, nil
}

func (r *GormCardRepository) Create(ctx context.Context, card *domain.Card) error {
	if err := r.db.WithContext(ctx).Create(card).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "card", "create", "conflict")
			return ErrCardNumberTaken
		}
		observability.RecordRepositoryOperation(ctx, "card", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "card", "create", "success")
	return nil
}

func (r *GormCardRepository) CompleteFirstLogin(ctx context.Context, id, pinHash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Card{}).
		Where("id = ? AND is_logged_in = ?", id, false).
		Updates(map[string]any{"pin_hash": pinHash, "is_logged_in": true})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "card", "complete_first_login", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "card", "complete_first_login", "noop")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "card", "complete_first_login", "success")
	return true, nil
}

func (r *GormCardRepository) UpdatePIN(ctx context.Context, id, pinHash string) error {
	res := r.db.WithContext(ctx).Model(&domain.Card{}).Where("id = ?", id).Update("pin_hash", pinHash)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "card", "update_pin", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "card", "update_pin", "not_found")
		return ErrCardNotFound
	}
	observability.RecordRepositoryOperation(ctx, "card", "update_pin", "success")
	return nil
}

func (r *GormCardRepository) SetVerified(ctx context.Context, id string, verified bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Card{}).
		Where("id = ? AND is_verified = ?", id, !verified).
		Update("is_verified", verified)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "card", "set_verified", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "card", "set_verified", "noop")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "card", "set_verified", "success")
	return true, nil
}

// Delete removes the card together with its QR record.
func (r *GormCardRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("card_id = ?", id).Delete(&domain.QRCode{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Card{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCardNotFound
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrCardNotFound):
		observability.RecordRepositoryOperation(ctx, "card", "delete", "not_found")
	case err != nil:
		observability.RecordRepositoryOperation(ctx, "card", "delete", "error")
	default:
		observability.RecordRepositoryOperation(ctx, "card", "delete", "success")
	}
	return err
}

func (r *GormCardRepository) findOne(ctx context.Context, op, query string, arg any) (*domain.Card, error) {
	var card domain.Card
	if err := r.db.WithContext(ctx).Where(query, arg).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "card", op, "not_found")
			return nil, ErrCardNotFound
		}
		observability.RecordRepositoryOperation(ctx, "card", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "card", op, "success")
	return &card, nil
}
