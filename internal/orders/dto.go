package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CreateInput captures everything needed to place an order.
type CreateInput struct {
	CustomerID      uuid.UUID
	Items           []ItemInput
	DeliveryType    enums.DeliveryType
	DeliveryAddress *types.Address
	PickupPointID   *uuid.UUID
	TimeSlot        *types.TimeSlot
	PaymentMethod   enums.PaymentMethod
	PromoCode       *string
	Notes           *string
	ClearCart       bool
}

// ItemDTO is one purchased line.
type ItemDTO struct {
	ID          uuid.UUID         `json:"id"`
	ProductID   uuid.UUID         `json:"productId"`
	FarmerID    uuid.UUID         `json:"farmerId"`
	ProductName string            `json:"productName"`
	Unit        enums.ProductUnit `json:"unit"`
	UnitPrice   decimal.Decimal   `json:"unitPrice"`
	Quantity    int               `json:"quantity"`
	LineTotal   decimal.Decimal   `json:"lineTotal"`
}

// TrackingDTO is one status history entry.
type TrackingDTO struct {
	Status    enums.OrderStatus `json:"status"`
	Note      *string           `json:"note,omitempty"`
	UpdatedBy uuid.UUID         `json:"updatedBy"`
	CreatedAt time.Time         `json:"createdAt"`
}

// PaymentDTO is the payment summary embedded in an order.
type PaymentDTO struct {
	ID             uuid.UUID             `json:"id"`
	Amount         decimal.Decimal       `json:"amount"`
	Currency       string                `json:"currency"`
	Method         enums.PaymentMethod   `json:"method"`
	Provider       enums.PaymentProvider `json:"provider"`
	Status         enums.PaymentStatus   `json:"status"`
	RefundedAmount decimal.Decimal       `json:"refundedAmount"`
	PaidAt         *time.Time            `json:"paidAt,omitempty"`
}

// OrderDTO is the API-facing shape of an order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	CustomerID      uuid.UUID           `json:"customerId"`
	Status          enums.OrderStatus   `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryFee     decimal.Decimal     `json:"deliveryFee"`
	Discount        decimal.Decimal     `json:"discount"`
	Total           decimal.Decimal     `json:"total"`
	PromoCode       *string             `json:"promoCode,omitempty"`
	DeliveryType    enums.DeliveryType  `json:"deliveryType"`
	DeliveryAddress *types.Address      `json:"deliveryAddress,omitempty"`
	PickupPointID   *uuid.UUID          `json:"pickupPointId,omitempty"`
	TimeSlot        *types.TimeSlot     `json:"timeSlot,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	Notes           *string             `json:"notes,omitempty"`
	CancelReason    *string             `json:"cancelReason,omitempty"`
	ConfirmedAt     *time.Time          `json:"confirmedAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	Items           []ItemDTO           `json:"items"`
	Tracking        []TrackingDTO       `json:"tracking,omitempty"`
	Payment         *PaymentDTO         `json:"payment,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Discount:        o.Discount,
		Total:           o.Total,
		PromoCode:       o.PromoCode,
		DeliveryType:    o.DeliveryType,
		DeliveryAddress: o.DeliveryAddress,
		PickupPointID:   o.PickupPointID,
		TimeSlot:        o.TimeSlot,
		PaymentMethod:   o.PaymentMethod,
		Notes:           o.Notes,
		CancelReason:    o.CancelReason,
		ConfirmedAt:     o.ConfirmedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		Items:           make([]ItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			FarmerID:    item.FarmerID,
			ProductName: item.ProductName,
			Unit:        item.Unit,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	for _, entry := range o.Tracking {
		dto.Tracking = append(dto.Tracking, TrackingDTO{
			Status:    entry.Status,
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			CreatedAt: entry.CreatedAt,
		})
	}
	if o.Payment != nil {
		dto.Payment = &PaymentDTO{
			ID:             o.Payment.ID,
			Amount:         o.Payment.Amount,
			Currency:       o.Payment.Currency,
			Method:         o.Payment.Method,
			Provider:       o.Payment.Provider,
			Status:         o.Payment.Status,
			RefundedAmount: o.Payment.RefundedAmount,
			PaidAt:         o.Payment.PaidAt,
		}
	}
	return dto
}

func FromModels(orders []models.Order) []*OrderDTO {
	out := make([]*OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, FromModel(&orders[i]))
	}
	return out
}
