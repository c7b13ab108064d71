package promocodes

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

// Repository exposes persistence operations for promo codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, code *models.PromoCode) (*models.PromoCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	List(ctx context.Context, params pagination.Params) ([]models.PromoCode, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountUserUsages(ctx context.Context, promoCodeID, userID uuid.UUID) (int64, error)
	RecordUsage(ctx context.Context, usage *models.PromoUsage) error
	// ClaimGlobalUsage bumps usage_count only while it stays under the limit.
	// Returns false when the code is exhausted.
	ClaimGlobalUsage(ctx context.Context, promoCodeID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a promo code repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, code *models.PromoCode) (*models.PromoCode, error) {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return nil, err
	}
	return code, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var code models.PromoCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.WithContext(ctx).
		Where("upper(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params) ([]models.PromoCode, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PromoCode{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var codes []models.PromoCode
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&codes).Error
	if err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CountUserUsages(ctx context.Context, promoCodeID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PromoUsage{}).
		Where("promo_code_id = ? AND user_id = ?", promoCodeID, userID).
		Count(&count).Error
	return count, err
}

func (r *repository) RecordUsage(ctx context.Context, usage *models.PromoUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) ClaimGlobalUsage(ctx context.Context, promoCodeID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE promo_codes
		SET usage_count = usage_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, promoCodeID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
