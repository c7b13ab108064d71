package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// Order is an immutable snapshot of a purchase with its pricing breakdown.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee     decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PromoCode       *string             `gorm:"column:promo_code"`
	DeliveryType    enums.DeliveryType  `gorm:"column:delivery_type;type:delivery_type;not null"`
	DeliveryAddress *types.Address      `gorm:"column:delivery_address;type:jsonb"`
	PickupPointID   *uuid.UUID          `gorm:"column:pickup_point_id;type:uuid"`
	TimeSlot        *types.TimeSlot     `gorm:"column:time_slot;type:jsonb"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Notes           *string             `gorm:"column:notes"`
	CancelReason    *string             `gorm:"column:cancel_reason"`
	ConfirmedAt     *time.Time          `gorm:"column:confirmed_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Tracking        []OrderTracking     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment         *Payment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one purchased line with the price captured at checkout.
type OrderItem struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	FarmerID    uuid.UUID         `gorm:"column:farmer_id;type:uuid;not null;index"`
	ProductName string            `gorm:"column:product_name;not null"`
	Unit        enums.ProductUnit `gorm:"column:unit;type:product_unit;not null"`
	UnitPrice   decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    int               `gorm:"column:quantity;not null"`
	LineTotal   decimal.Decimal   `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// OrderTracking is one append-only entry of the order's status history.
type OrderTracking struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	Note      *string           `gorm:"column:note"`
	UpdatedBy uuid.UUID         `gorm:"column:updated_by;type:uuid;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (OrderTracking) TableName() string { return "order_tracking" }
