package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
)

// RefundDTO is one refund ledger entry rendered for clients.
type RefundDTO struct {
	ID          uuid.UUID          `json:"id"`
	Amount      decimal.Decimal    `json:"amount"`
	Reason      *string            `json:"reason,omitempty"`
	Status      enums.RefundStatus `json:"status"`
	ProcessedAt *time.Time         `json:"processedAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// PaymentDTO is a payment with its refund ledger rendered for clients.
type PaymentDTO struct {
	ID             uuid.UUID             `json:"id"`
	OrderID        uuid.UUID             `json:"orderId"`
	Amount         decimal.Decimal       `json:"amount"`
	Currency       string                `json:"currency"`
	Method         enums.PaymentMethod   `json:"method"`
	Provider       enums.PaymentProvider `json:"provider"`
	Status         enums.PaymentStatus   `json:"status"`
	RefundedAmount decimal.Decimal       `json:"refundedAmount"`
	PaidAt         *time.Time            `json:"paidAt,omitempty"`
	Refunds        []RefundDTO           `json:"refunds,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// IntentDTO carries what a client needs to complete a card payment.
type IntentDTO struct {
	PaymentID    uuid.UUID       `json:"paymentId"`
	OrderID      uuid.UUID       `json:"orderId"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ProviderRef  string          `json:"providerRef"`
	ClientSecret string          `json:"clientSecret"`
}

// FromModel maps a payment row onto its DTO.
func FromModel(p *models.Payment) *PaymentDTO {
	dto := &PaymentDTO{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         p.Method,
		Provider:       p.Provider,
		Status:         p.Status,
		RefundedAmount: p.RefundedAmount,
		PaidAt:         p.PaidAt,
		CreatedAt:      p.CreatedAt,
	}
	for _, refund := range p.Refunds {
		dto.Refunds = append(dto.Refunds, RefundDTO{
			ID:          refund.ID,
			Amount:      refund.Amount,
			Reason:      refund.Reason,
			Status:      refund.Status,
			ProcessedAt: refund.ProcessedAt,
			CreatedAt:   refund.CreatedAt,
		})
	}
	return dto
}
