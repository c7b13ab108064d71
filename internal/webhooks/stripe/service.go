package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

type paymentSettler interface {
	ConfirmFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error
	FailFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error
}

// Service routes verified Stripe events into the payment workflow.
type Service struct {
	payments paymentSettler
}

// NewService builds the webhook service.
func NewService(payments paymentSettler) (*Service, error) {
	if payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	return &Service{payments: payments}, nil
}

// HandleEvent processes one verified event. Unknown event types are
// acknowledged without action so Stripe stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.payments.ConfirmFromProvider(ctx, intent)
	case stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.payments.FailFromProvider(ctx, intent)
	default:
		return nil
	}
}

func decodeIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}
	return &intent, nil
}
