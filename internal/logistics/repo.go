package logistics

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

// DeliveryFilter narrows admin delivery listings.
type DeliveryFilter struct {
	Status *enums.DeliveryStatus
	Type   *enums.DeliveryType
}

// Repository persists pickup points and deliveries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePickupPoint(ctx context.Context, point *models.PickupPoint) error
	FindPickupPoint(ctx context.Context, id uuid.UUID) (*models.PickupPoint, error)
	ListPickupPoints(ctx context.Context, includeInactive bool) ([]models.PickupPoint, error)
	UpdatePickupPoint(ctx context.Context, id uuid.UUID, updates map[string]any) error
	PickupPointHasPendingDeliveries(ctx context.Context, id uuid.UUID) (bool, error)

	FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, filter DeliveryFilter, params pagination.Params) ([]models.Delivery, int64, error)
	UpdateDelivery(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a logistics repository on the given connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) CreatePickupPoint(ctx context.Context, point *models.PickupPoint) error {
	return r.db.WithContext(ctx).Create(point).Error
}

func (r *repository) FindPickupPoint(ctx context.Context, id uuid.UUID) (*models.PickupPoint, error) {
	var point models.PickupPoint
	err := r.db.WithContext(ctx).First(&point, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &point, nil
}

func (r *repository) ListPickupPoints(ctx context.Context, includeInactive bool) ([]models.PickupPoint, error) {
	query := r.db.WithContext(ctx).Model(&models.PickupPoint{})
	if !includeInactive {
		query = query.Where("is_active = true")
	}

	var points []models.PickupPoint
	err := query.Order("name ASC").Find(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *repository) UpdatePickupPoint(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PickupPoint{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) PickupPointHasPendingDeliveries(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("pickup_point_id = ? AND status NOT IN ('delivered', 'cancelled')", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).First(&delivery, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).First(&delivery, "order_id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) ListDeliveries(ctx context.Context, filter DeliveryFilter, params pagination.Params) ([]models.Delivery, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Delivery{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var deliveries []models.Delivery
	err := query.
		Order("scheduled_date ASC, created_at ASC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, 0, err
	}
	return deliveries, total, nil
}

func (r *repository) UpdateDelivery(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(updates).Error
}
