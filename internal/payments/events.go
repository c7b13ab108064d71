package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentSucceededEvent is queued when the provider confirms a charge.
type PaymentSucceededEvent struct {
	PaymentID   uuid.UUID       `json:"paymentId"`
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  uuid.UUID       `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ProviderRef string          `json:"providerRef"`
}

// PaymentFailedEvent is queued when the provider declines a charge.
type PaymentFailedEvent struct {
	PaymentID   uuid.UUID       `json:"paymentId"`
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  uuid.UUID       `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      *string         `json:"reason,omitempty"`
}

// RefundRecordedEvent is queued when a refund lands in the ledger.
type RefundRecordedEvent struct {
	RefundID      uuid.UUID       `json:"refundId"`
	PaymentID     uuid.UUID       `json:"paymentId"`
	OrderID       uuid.UUID       `json:"orderId"`
	CustomerID    uuid.UUID       `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	TotalRefunded decimal.Decimal `json:"totalRefunded"`
	Reason        *string         `json:"reason,omitempty"`
}
