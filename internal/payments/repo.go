package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
)

// Repository persists payments and their refund ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ClaimRefund(ctx context.Context, paymentID uuid.UUID, amount string) (bool, error)
	CreateRefund(ctx context.Context, refund *models.Refund) error
	UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository on the given connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Refunds", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Refunds").
		First(&payment, "order_id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		First(&payment, "provider_ref = ?", providerRef).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimRefund atomically reserves part of the refundable balance. It bumps
// refunded_amount only while the cumulative total stays within the captured
// amount, so concurrent refunds cannot overdraw the payment.
func (r *repository) ClaimRefund(ctx context.Context, paymentID uuid.UUID, amount string) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE payments
		SET refunded_amount = refunded_amount + ?,
		    status = CASE WHEN refunded_amount + ? >= amount THEN 'refunded'::payment_status ELSE 'partially_refunded'::payment_status END,
		    updated_at = NOW()
		WHERE id = ?
		  AND status IN ('succeeded', 'partially_refunded')
		  AND refunded_amount + ? <= amount`,
		amount, amount, paymentID, amount)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateRefund(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(updates).Error
}
