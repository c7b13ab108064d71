package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/orders"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
)

var minorUnits = decimal.NewFromInt(100)

type paymentProvider interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amountMinor int64, metadata map[string]string) (*stripe.Refund, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines payment operations.
type Service interface {
	CreateIntent(ctx context.Context, orderID, customerID uuid.UUID) (*IntentDTO, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*PaymentDTO, error)
	Refund(ctx context.Context, input RefundInput) (*PaymentDTO, error)
	ConfirmFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error
	FailFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error
}

// RefundInput describes an admin-initiated refund. A zero Amount refunds
// the remaining balance.
type RefundInput struct {
	PaymentID   uuid.UUID
	Amount      decimal.Decimal
	Reason      *string
	RequestedBy uuid.UUID
}

type service struct {
	db       *db.Client
	repo     Repository
	orders   orders.Repository
	provider paymentProvider
	outbox   outboxPublisher
	now      func() time.Time
}

// ServiceParams bundles the dependencies for the payment service.
type ServiceParams struct {
	DB       *db.Client
	Repo     Repository
	Orders   orders.Repository
	Provider paymentProvider
	Outbox   outboxPublisher
}

// NewService builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		db:       params.DB,
		repo:     params.Repo,
		orders:   params.Orders,
		provider: params.Provider,
		outbox:   params.Outbox,
		now:      time.Now,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, orderID, customerID uuid.UUID) (*IntentDTO, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}

	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	switch payment.Status {
	case enums.PaymentStatusPending, enums.PaymentStatusProcessing, enums.PaymentStatusFailed:
		// a new intent may be opened
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled").
			WithDetails(map[string]any{"status": payment.Status})
	}

	amountMinor := payment.Amount.Mul(minorUnits).Round(0).IntPart()
	intent, err := s.provider.CreatePaymentIntent(ctx, amountMinor, payment.Currency, map[string]string{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"payment_id":   payment.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	updates := map[string]any{
		"provider_ref": intent.ID,
		"status":       enums.PaymentStatusProcessing,
	}
	if err := s.repo.Update(ctx, payment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store provider reference")
	}

	return &IntentDTO{
		PaymentID:    payment.ID,
		OrderID:      order.ID,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		ProviderRef:  intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*PaymentDTO, error) {
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if actor.Role != enums.UserRoleAdmin && payment.CustomerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to customer")
	}
	return FromModel(payment), nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*PaymentDTO, error) {
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}

	payment, err := s.repo.FindByID(ctx, input.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	amount := input.Amount.Round(2)
	if amount.IsZero() {
		amount = payment.Amount.Sub(payment.RefundedAmount)
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing left to refund")
	}

	var refundID uuid.UUID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		claimed, err := repo.ClaimRefund(ctx, payment.ID, amount.StringFixed(2))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim refund")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds refundable balance").
				WithDetails(map[string]any{
					"amount":          amount,
					"captured":        payment.Amount,
					"alreadyRefunded": payment.RefundedAmount,
				})
		}

		refund := &models.Refund{
			PaymentID:   payment.ID,
			Amount:      amount,
			Reason:      input.Reason,
			Status:      enums.RefundStatusPending,
			RequestedBy: input.RequestedBy,
		}
		if err := repo.CreateRefund(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}
		refundID = refund.ID

		event := outbox.DomainEvent{
			EventType:     enums.EventRefundRecorded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.RequestedBy, Role: string(enums.UserRoleAdmin)},
			Data: RefundRecordedEvent{
				RefundID:      refund.ID,
				PaymentID:     payment.ID,
				OrderID:       payment.OrderID,
				CustomerID:    payment.CustomerID,
				Amount:        amount,
				TotalRefunded: payment.RefundedAmount.Add(amount),
				Reason:        input.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	if payment.ProviderRef != nil && *payment.ProviderRef != "" {
		amountMinor := amount.Mul(minorUnits).Round(0).IntPart()
		providerRefund, providerErr := s.provider.CreateRefund(ctx, *payment.ProviderRef, amountMinor, map[string]string{
			"payment_id": payment.ID.String(),
			"refund_id":  refundID.String(),
		})
		if providerErr != nil {
			if releaseErr := s.releaseRefund(ctx, payment.ID, refundID, amount); releaseErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, releaseErr, "release failed refund claim")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, providerErr, "provider refund")
		}
		now := s.now().UTC()
		updates := map[string]any{
			"status":       enums.RefundStatusSucceeded,
			"provider_ref": providerRefund.ID,
			"processed_at": now,
		}
		if err := s.repo.UpdateRefund(ctx, refundID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize refund")
		}
	} else {
		// cash orders settle off-platform, the ledger entry is the record
		now := s.now().UTC()
		if err := s.repo.UpdateRefund(ctx, refundID, map[string]any{
			"status":       enums.RefundStatusSucceeded,
			"processed_at": now,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize refund")
		}
	}

	updated, err := s.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return FromModel(updated), nil
}

// releaseRefund undoes a claimed refund after the provider rejected it.
func (s *service) releaseRefund(ctx context.Context, paymentID, refundID uuid.UUID, amount decimal.Decimal) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		err := tx.WithContext(ctx).Exec(`
			UPDATE payments
			SET refunded_amount = refunded_amount - ?,
			    status = CASE WHEN refunded_amount - ? > 0 THEN 'partially_refunded'::payment_status ELSE 'succeeded'::payment_status END,
			    updated_at = NOW()
			WHERE id = ?`,
			amount.StringFixed(2), amount.StringFixed(2), paymentID).Error
		if err != nil {
			return err
		}
		return repo.UpdateRefund(ctx, refundID, map[string]any{"status": enums.RefundStatusFailed})
	})
}

func (s *service) ConfirmFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error {
	if intent == nil || intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent required")
	}

	payment, err := s.repo.FindByProviderRef(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// intent from another environment or a deleted order, nothing to settle
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusSucceeded {
		return nil
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		now := s.now().UTC()
		if err := repo.Update(ctx, payment.ID, map[string]any{
			"status":  enums.PaymentStatusSucceeded,
			"paid_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment succeeded")
		}

		order, err := ordersRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusPending {
			if err := ordersRepo.Update(ctx, order.ID, map[string]any{
				"status":       enums.OrderStatusConfirmed,
				"confirmed_at": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
			}
			tracking := &models.OrderTracking{
				OrderID:   order.ID,
				Status:    enums.OrderStatusConfirmed,
				UpdatedBy: order.CustomerID,
			}
			if err := ordersRepo.AppendTracking(ctx, tracking); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentSucceeded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: PaymentSucceededEvent{
				PaymentID:   payment.ID,
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  payment.CustomerID,
				Amount:      payment.Amount,
				Currency:    payment.Currency,
				ProviderRef: intent.ID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) FailFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error {
	if intent == nil || intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent required")
	}

	payment, err := s.repo.FindByProviderRef(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	switch payment.Status {
	case enums.PaymentStatusSucceeded, enums.PaymentStatusFailed:
		return nil
	}

	var reason *string
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		msg := intent.LastPaymentError.Msg
		reason = &msg
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, payment.ID, map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}

		order, err := s.orders.WithTx(tx).FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: PaymentFailedEvent{
				PaymentID:   payment.ID,
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  payment.CustomerID,
				Amount:      payment.Amount,
				Reason:      reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}
