package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout commits.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"orderId"`
	OrderNumber   string              `json:"orderNumber"`
	CustomerID    uuid.UUID           `json:"customerId"`
	FarmerIDs     []uuid.UUID         `json:"farmerIds"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	DeliveryFee   decimal.Decimal     `json:"deliveryFee"`
	Discount      decimal.Decimal     `json:"discount"`
	Total         decimal.Decimal     `json:"total"`
	DeliveryType  enums.DeliveryType  `json:"deliveryType"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	PromoCode     *string             `json:"promoCode,omitempty"`
	ItemCount     int                 `json:"itemCount"`
}

// OrderStatusChangedEvent is emitted on every accepted transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	CustomerID  uuid.UUID         `json:"customerId"`
	FromStatus  enums.OrderStatus `json:"fromStatus"`
	ToStatus    enums.OrderStatus `json:"toStatus"`
	Note        *string           `json:"note,omitempty"`
}

// OrderCancelledEvent is emitted when an order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	CustomerID  uuid.UUID         `json:"customerId"`
	FromStatus  enums.OrderStatus `json:"fromStatus"`
	Reason      *string           `json:"reason,omitempty"`
	Total       decimal.Decimal   `json:"total"`
}

// ProductLowStockEvent is emitted when stock dips under the alert threshold.
type ProductLowStockEvent struct {
	ProductID   uuid.UUID `json:"productId"`
	FarmerID    uuid.UUID `json:"farmerId"`
	ProductName string    `json:"productName"`
	Remaining   int       `json:"remaining"`
	Threshold   int       `json:"threshold"`
}
