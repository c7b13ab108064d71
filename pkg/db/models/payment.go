package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/enums"
)

// Payment is the single payment record created for an order at checkout.
type Payment struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex:payments_order_id_key"`
	CustomerID     uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	Amount         decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       string                `gorm:"column:currency;not null;default:'RUB'"`
	Method         enums.PaymentMethod   `gorm:"column:method;type:payment_method;not null"`
	Provider       enums.PaymentProvider `gorm:"column:provider;type:payment_provider;not null;default:'stripe'"`
	Status         enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	ProviderRef    *string               `gorm:"column:provider_ref;index"`
	FailureReason  *string               `gorm:"column:failure_reason"`
	RefundedAmount decimal.Decimal       `gorm:"column:refunded_amount;type:numeric(12,2);not null;default:0"`
	PaidAt         *time.Time            `gorm:"column:paid_at"`
	Refunds        []Refund              `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Refund is one entry in a payment's append-only refund ledger.
type Refund struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID   uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;index"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason      *string            `gorm:"column:reason"`
	Status      enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	ProviderRef *string            `gorm:"column:provider_ref"`
	RequestedBy uuid.UUID          `gorm:"column:requested_by;type:uuid;not null"`
	ProcessedAt *time.Time         `gorm:"column:processed_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
