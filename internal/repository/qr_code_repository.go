package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/whitecard/whitecard-backend/internal/domain"
	"github.com/whitecard/whitecard-backend/internal/observability"
)

var ErrQRCodeNotFound = errors.New("qr code not found")

//go:generate mockgen -destination=gomock/qr_code_repository_mock.go -package=gomock . QRCodeRepository

type QRCodeRepository interface {
	Upsert(ctx context.Context, qr *domain.QRCode) error
	FindByCardID(ctx context.Context, cardID string) (*domain.QRCode, error)
	UpdateScanToken(ctx context.Context, cardID, token string) error
	ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.QRCode], error)
}

type GormQRCodeRepository struct{ db *gorm.DB }

func NewQRCodeRepository(db *gorm.DB) QRCodeRepository {
	return &GormQRCodeRepository{db: db}
}

func (r *GormQRCodeRepository) Upsert(ctx context.Context, qr *domain.QRCode) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"card_number", "holder_name", "scan_url", "image_png", "object_key", "scan_token", "updated_at"}),
	}).Create(qr).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "qr_code", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "qr_code", "upsert", "success")
	return nil
}

func (r *GormQRCodeRepository) FindByCardID(ctx context.Context, cardID string) (*domain.QRCode, error) {
	var qr domain.QRCode
	if err := r.db.WithContext(ctx).Where("card_id = ?", cardID).First(&qr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "qr_code", "find_by_card_id", "not_found")
			return nil, ErrQRCodeNotFound
		}
		observability.RecordRepositoryOperation(ctx, "qr_code", "find_by_card_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "qr_code", "find_by_card_id", "success")
	return &qr, nil
}

func (r *GormQRCodeRepository) UpdateScanToken(ctx context.Context, cardID, token string) error {
	res := r.db.WithContext(ctx).Model(&domain.QRCode{}).Where("card_id = ?", cardID).Update("scan_token", token)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "qr_code", "update_scan_token", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "qr_code", "update_scan_token", "not_found")
		return ErrQRCodeNotFound
	}
	observability.RecordRepositoryOperation(ctx, "qr_code", "update_scan_token", "success")
	return nil
}

func (r *GormQRCodeRepository) ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.QRCode], error) {
	page := req.Normalized()
	base := r.db.WithContext(ctx).Model(&domain.QRCode{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "qr_code", "list_paged", "error")
		return PageResult[domain.QRCode]{}, err
	}
	var items []domain.QRCode
	if total > int64(page.Offset()) {
		if err := base.Scopes(paginate(page)).Order("id desc").Find(&items).Error; err != nil {
			observability.RecordRepositoryOperation(ctx, "qr_code", "list_paged", "error")
			return PageResult[domain.QRCode]{}, err
		}
	}
	observability.RecordRepositoryOperation(ctx, "qr_code", "list_paged", "success")
	return newPageResult(page, total, items), nil
}
