package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

// ListFilter narrows order listings.
type ListFilter struct {
	Status *enums.OrderStatus
}

// Repository exposes persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.Order, int64, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.Order, int64, error)
	ListAll(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AppendTracking(ctx context.Context, entry *models.OrderTracking) error
	FarmerHasItems(ctx context.Context, orderID, farmerID uuid.UUID) (bool, error)
	FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Tracking", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_tracking.created_at ASC")
		}).
		Preload("Payment").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID)
	return r.page(ctx, query, filter, params)
}

func (r *repository) ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN (SELECT DISTINCT order_id FROM order_items WHERE farmer_id = ?)", farmerID)
	return r.page(ctx, query, filter, params)
}

func (r *repository) ListAll(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	return r.page(ctx, query, filter, params)
}

func (r *repository) page(ctx context.Context, query *gorm.DB, filter ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.
		Preload("Items").
		Preload("Payment").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) AppendTracking(ctx context.Context, entry *models.OrderTracking) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) FarmerHasItems(ctx context.Context, orderID, farmerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND farmer_id = ?", orderID, farmerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
