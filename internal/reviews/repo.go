package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

// Repository persists reviews and recomputes rating aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, int64, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID, params pagination.Params) ([]models.Review, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementHelpful(ctx context.Context, id uuid.UUID) error
	HasDeliveredOrderWithProduct(ctx context.Context, customerID, orderID, productID uuid.UUID) (bool, error)
	RefreshProductRating(ctx context.Context, productID uuid.UUID) error
	RefreshFarmerRating(ctx context.Context, farmerID uuid.UUID) error
	RefreshAllRatings(ctx context.Context) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reviews repository on the given connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).First(&review, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, int64, error) {
	return r.page(ctx, r.db.WithContext(ctx).Model(&models.Review{}).Where("product_id = ?", productID), params)
}

func (r *repository) ListByFarmer(ctx context.Context, farmerID uuid.UUID, params pagination.Params) ([]models.Review, int64, error) {
	return r.page(ctx, r.db.WithContext(ctx).Model(&models.Review{}).Where("farmer_id = ?", farmerID), params)
}

func (r *repository) page(ctx context.Context, query *gorm.DB, params pagination.Params) ([]models.Review, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Review{}).Error
}

func (r *repository) IncrementHelpful(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", id).
		UpdateColumn("helpful_count", gorm.Expr("helpful_count + 1")).Error
}

func (r *repository) HasDeliveredOrderWithProduct(ctx context.Context, customerID, orderID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where("orders.id = ? AND orders.customer_id = ? AND orders.status = ? AND order_items.product_id = ?",
			orderID, customerID, "delivered", productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RefreshProductRating recomputes the aggregate from the full review set.
// A full recompute keeps the stored average correct even after review
// deletions or concurrent inserts.
func (r *repository) RefreshProductRating(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET rating_average = COALESCE(agg.avg_rating, 0),
		    rating_count = COALESCE(agg.total, 0),
		    updated_at = NOW()
		FROM (
			SELECT ROUND(AVG(rating)::numeric, 2) AS avg_rating, COUNT(*) AS total
			FROM reviews
			WHERE product_id = ?
		) AS agg
		WHERE products.id = ?`, productID, productID).Error
}

func (r *repository) RefreshFarmerRating(ctx context.Context, farmerID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE farmers
		SET rating_average = COALESCE(agg.avg_rating, 0),
		    rating_count = COALESCE(agg.total, 0),
		    updated_at = NOW()
		FROM (
			SELECT ROUND(AVG(rating)::numeric, 2) AS avg_rating, COUNT(*) AS total
			FROM reviews
			WHERE farmer_id = ?
		) AS agg
		WHERE farmers.id = ?`, farmerID, farmerID).Error
}

// RefreshAllRatings recomputes every stored aggregate in two statements.
// Used by the nightly reconciliation job to heal rows that drifted from
// their review sets.
func (r *repository) RefreshAllRatings(ctx context.Context) error {
	err := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET rating_average = COALESCE(agg.avg_rating, 0),
		    rating_count = COALESCE(agg.total, 0),
		    updated_at = NOW()
		FROM (
			SELECT product_id, ROUND(AVG(rating)::numeric, 2) AS avg_rating, COUNT(*) AS total
			FROM reviews
			GROUP BY product_id
		) AS agg
		WHERE products.id = agg.product_id
		  AND (products.rating_average <> COALESCE(agg.avg_rating, 0)
		    OR products.rating_count <> COALESCE(agg.total, 0))`).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE farmers
		SET rating_average = COALESCE(agg.avg_rating, 0),
		    rating_count = COALESCE(agg.total, 0),
		    updated_at = NOW()
		FROM (
			SELECT farmer_id, ROUND(AVG(rating)::numeric, 2) AS avg_rating, COUNT(*) AS total
			FROM reviews
			GROUP BY farmer_id
		) AS agg
		WHERE farmers.id = agg.farmer_id
		  AND (farmers.rating_average <> COALESCE(agg.avg_rating, 0)
		    OR farmers.rating_count <> COALESCE(agg.total, 0))`).Error
}
