package farmers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

// ListFilter narrows the public farmer listing.
type ListFilter struct {
	Search       string
	IsOrganic    *bool
	VerifiedOnly bool
}

// Repository exposes persistence operations for farmer profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, farmer *models.Farmer) (*models.Farmer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Farmer, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Farmer, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Farmer, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a farmers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, farmer *models.Farmer) (*models.Farmer, error) {
	if err := r.db.WithContext(ctx).Create(farmer).Error; err != nil {
		return nil, err
	}
	return farmer, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Farmer, error) {
	var farmer models.Farmer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&farmer).Error
	if err != nil {
		return nil, err
	}
	return &farmer, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Farmer, error) {
	var farmer models.Farmer
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&farmer).Error
	if err != nil {
		return nil, err
	}
	return &farmer, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Farmer, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Farmer{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("lower(farm_name) LIKE ? OR lower(coalesce(description, '')) LIKE ?", pattern, pattern)
	}
	if filter.IsOrganic != nil {
		query = query.Where("is_organic = ?", *filter.IsOrganic)
	}
	if filter.VerifiedOnly {
		query = query.Where("is_verified = true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var farmers []models.Farmer
	err := query.
		Order("rating_average DESC, created_at ASC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&farmers).Error
	if err != nil {
		return nil, 0, err
	}
	return farmers, total, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Farmer{}).
		Where("id = ?", id).
		Updates(updates).Error
}
