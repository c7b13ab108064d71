package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/orders"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

func openPaymentsTestDB(t *testing.T) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db.NewWithConn(conn)
}

type stubPaymentsRepo struct {
	payment       *models.Payment
	refunds       []*models.Refund
	updates       map[string]any
	refundUpdates map[uuid.UUID]map[string]any
	claimOK       bool
	claimCalls    int
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) FindByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error) {
	if s.payment == nil || s.payment.ProviderRef == nil || *s.payment.ProviderRef != providerRef {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	if s.payment != nil && s.payment.ID == id {
		if status, ok := updates["status"].(enums.PaymentStatus); ok {
			s.payment.Status = status
		}
	}
	return nil
}

func (s *stubPaymentsRepo) ClaimRefund(ctx context.Context, paymentID uuid.UUID, amount string) (bool, error) {
	s.claimCalls++
	return s.claimOK, nil
}

func (s *stubPaymentsRepo) CreateRefund(ctx context.Context, refund *models.Refund) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	s.refunds = append(s.refunds, refund)
	return nil
}

func (s *stubPaymentsRepo) UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.refundUpdates == nil {
		s.refundUpdates = map[uuid.UUID]map[string]any{}
	}
	s.refundUpdates[id] = updates
	return nil
}

type stubPaymentOrdersRepo struct {
	order    *models.Order
	updates  map[string]any
	tracking []models.OrderTracking
}

func (s *stubPaymentOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubPaymentOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubPaymentOrdersRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, filter orders.ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter orders.ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) ListAll(ctx context.Context, filter orders.ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	panic("not implemented")
}

func (s *stubPaymentOrdersRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	if s.order != nil && s.order.ID == id {
		if status, ok := updates["status"].(enums.OrderStatus); ok {
			s.order.Status = status
		}
	}
	return nil
}

func (s *stubPaymentOrdersRepo) AppendTracking(ctx context.Context, entry *models.OrderTracking) error {
	s.tracking = append(s.tracking, *entry)
	return nil
}

func (s *stubPaymentOrdersRepo) FarmerHasItems(ctx context.Context, orderID, farmerID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubPaymentOrdersRepo) FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

type stubProvider struct {
	intent       *stripe.PaymentIntent
	intentErr    error
	refund       *stripe.Refund
	refundErr    error
	intentAmount int64
	refundCalls  int
}

func (s *stubProvider) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	s.intentAmount = amountMinor
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	if s.intent != nil {
		return s.intent, nil
	}
	return &stripe.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

func (s *stubProvider) CreateRefund(ctx context.Context, paymentIntentID string, amountMinor int64, metadata map[string]string) (*stripe.Refund, error) {
	s.refundCalls++
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	if s.refund != nil {
		return s.refund, nil
	}
	return &stripe.Refund{ID: "re_test"}, nil
}

type stubPaymentsOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubPaymentsOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type paymentsFixture struct {
	svc      Service
	repo     *stubPaymentsRepo
	orders   *stubPaymentOrdersRepo
	provider *stubProvider
	outbox   *stubPaymentsOutbox
}

func newPaymentsFixture(t *testing.T) *paymentsFixture {
	t.Helper()

	repo := &stubPaymentsRepo{claimOK: true}
	ordersRepo := &stubPaymentOrdersRepo{}
	provider := &stubProvider{}
	ob := &stubPaymentsOutbox{}
	svc, err := NewService(ServiceParams{
		DB:       openPaymentsTestDB(t),
		Repo:     repo,
		Orders:   ordersRepo,
		Provider: provider,
		Outbox:   ob,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return &paymentsFixture{svc: svc, repo: repo, orders: ordersRepo, provider: provider, outbox: ob}
}

func TestCreateIntentOpensProviderIntent(t *testing.T) {
	fx := newPaymentsFixture(t)
	customerID := uuid.New()
	orderID := uuid.New()
	fx.orders.order = &models.Order{
		ID:          orderID,
		OrderNumber: "FM-20260829-ABCDEF",
		CustomerID:  customerID,
		Status:      enums.OrderStatusPending,
	}
	fx.repo.payment = &models.Payment{
		ID:         uuid.New(),
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     decimal.RequireFromString("470.00"),
		Currency:   "RUB",
		Status:     enums.PaymentStatusPending,
	}

	dto, err := fx.svc.CreateIntent(context.Background(), orderID, customerID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if fx.provider.intentAmount != 47000 {
		t.Fatalf("expected 47000 minor units, got %d", fx.provider.intentAmount)
	}
	if dto.ProviderRef != "pi_test" || dto.ClientSecret != "pi_test_secret" {
		t.Fatalf("unexpected intent dto %+v", dto)
	}
	if fx.repo.updates["provider_ref"] != "pi_test" {
		t.Fatalf("expected provider ref stored, got %+v", fx.repo.updates)
	}
}

func TestCreateIntentRejectsSettledPayment(t *testing.T) {
	fx := newPaymentsFixture(t)
	customerID := uuid.New()
	orderID := uuid.New()
	fx.orders.order = &models.Order{ID: orderID, CustomerID: customerID, Status: enums.OrderStatusConfirmed}
	fx.repo.payment = &models.Payment{
		ID:         uuid.New(),
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     decimal.RequireFromString("470.00"),
		Status:     enums.PaymentStatusSucceeded,
	}

	_, err := fx.svc.CreateIntent(context.Background(), orderID, customerID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRefundDefaultsToRemainingBalance(t *testing.T) {
	fx := newPaymentsFixture(t)
	paymentID := uuid.New()
	fx.repo.payment = &models.Payment{
		ID:             paymentID,
		OrderID:        uuid.New(),
		CustomerID:     uuid.New(),
		Amount:         decimal.RequireFromString("1000.00"),
		RefundedAmount: decimal.RequireFromString("400.00"),
		Method:         enums.PaymentMethodCash,
		Status:         enums.PaymentStatusSucceeded,
	}

	_, err := fx.svc.Refund(context.Background(), RefundInput{
		PaymentID:   paymentID,
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(fx.repo.refunds) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(fx.repo.refunds))
	}
	refund := fx.repo.refunds[0]
	if !refund.Amount.Equal(decimal.RequireFromString("600.00")) {
		t.Fatalf("expected remaining balance 600, got %s", refund.Amount)
	}
	finalized := fx.repo.refundUpdates[refund.ID]
	if finalized["status"] != enums.RefundStatusSucceeded {
		t.Fatalf("expected refund finalized, got %+v", finalized)
	}
	if fx.provider.refundCalls != 0 {
		t.Fatal("cash refund must not call the provider")
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventRefundRecorded {
		t.Fatalf("expected refund event, got %+v", fx.outbox.events)
	}
}

func TestRefundCallsProviderForCardPayments(t *testing.T) {
	fx := newPaymentsFixture(t)
	paymentID := uuid.New()
	ref := "pi_live"
	fx.repo.payment = &models.Payment{
		ID:          paymentID,
		OrderID:     uuid.New(),
		CustomerID:  uuid.New(),
		Amount:      decimal.RequireFromString("1000.00"),
		ProviderRef: &ref,
		Method:      enums.PaymentMethodCard,
		Status:      enums.PaymentStatusSucceeded,
	}

	_, err := fx.svc.Refund(context.Background(), RefundInput{
		PaymentID:   paymentID,
		Amount:      decimal.RequireFromString("250.00"),
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if fx.provider.refundCalls != 1 {
		t.Fatalf("expected one provider refund, got %d", fx.provider.refundCalls)
	}
	refund := fx.repo.refunds[0]
	finalized := fx.repo.refundUpdates[refund.ID]
	if finalized["provider_ref"] != "re_test" {
		t.Fatalf("expected provider ref on ledger entry, got %+v", finalized)
	}
}

func TestRefundRejectsOverClaim(t *testing.T) {
	fx := newPaymentsFixture(t)
	fx.repo.claimOK = false
	paymentID := uuid.New()
	fx.repo.payment = &models.Payment{
		ID:             paymentID,
		OrderID:        uuid.New(),
		CustomerID:     uuid.New(),
		Amount:         decimal.RequireFromString("1000.00"),
		RefundedAmount: decimal.RequireFromString("900.00"),
		Status:         enums.PaymentStatusSucceeded,
	}

	_, err := fx.svc.Refund(context.Background(), RefundInput{
		PaymentID:   paymentID,
		Amount:      decimal.RequireFromString("200.00"),
		RequestedBy: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(fx.repo.refunds) != 0 {
		t.Fatal("unexpected ledger entry")
	}
}

func TestRefundNothingLeft(t *testing.T) {
	fx := newPaymentsFixture(t)
	paymentID := uuid.New()
	fx.repo.payment = &models.Payment{
		ID:             paymentID,
		Amount:         decimal.RequireFromString("1000.00"),
		RefundedAmount: decimal.RequireFromString("1000.00"),
		Status:         enums.PaymentStatusRefunded,
	}

	_, err := fx.svc.Refund(context.Background(), RefundInput{PaymentID: paymentID, RequestedBy: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if fx.repo.claimCalls != 0 {
		t.Fatal("claim should not run when nothing is refundable")
	}
}

func TestConfirmFromProviderSettlesPaymentAndOrder(t *testing.T) {
	fx := newPaymentsFixture(t)
	orderID := uuid.New()
	ref := "pi_confirmed"
	fx.repo.payment = &models.Payment{
		ID:          uuid.New(),
		OrderID:     orderID,
		CustomerID:  uuid.New(),
		Amount:      decimal.RequireFromString("470.00"),
		Currency:    "RUB",
		ProviderRef: &ref,
		Status:      enums.PaymentStatusProcessing,
	}
	fx.orders.order = &models.Order{
		ID:          orderID,
		OrderNumber: "FM-20260829-ABCDEF",
		CustomerID:  fx.repo.payment.CustomerID,
		Status:      enums.OrderStatusPending,
	}

	err := fx.svc.ConfirmFromProvider(context.Background(), &stripe.PaymentIntent{ID: ref})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if fx.repo.payment.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("expected payment succeeded, got %s", fx.repo.payment.Status)
	}
	if fx.orders.order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected order confirmed, got %s", fx.orders.order.Status)
	}
	if len(fx.orders.tracking) != 1 || fx.orders.tracking[0].Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmation tracking entry, got %+v", fx.orders.tracking)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventPaymentSucceeded {
		t.Fatalf("expected payment succeeded event, got %+v", fx.outbox.events)
	}
}

func TestConfirmFromProviderIdempotent(t *testing.T) {
	fx := newPaymentsFixture(t)
	ref := "pi_done"
	fx.repo.payment = &models.Payment{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		ProviderRef: &ref,
		Status:      enums.PaymentStatusSucceeded,
	}

	if err := fx.svc.ConfirmFromProvider(context.Background(), &stripe.PaymentIntent{ID: ref}); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(fx.outbox.events) != 0 {
		t.Fatalf("unexpected events %+v", fx.outbox.events)
	}
}

func TestConfirmFromProviderIgnoresUnknownIntent(t *testing.T) {
	fx := newPaymentsFixture(t)
	if err := fx.svc.ConfirmFromProvider(context.Background(), &stripe.PaymentIntent{ID: "pi_unknown"}); err != nil {
		t.Fatalf("unknown intent must be ignored, got %v", err)
	}
}

func TestFailFromProviderRecordsReason(t *testing.T) {
	fx := newPaymentsFixture(t)
	orderID := uuid.New()
	ref := "pi_failed"
	fx.repo.payment = &models.Payment{
		ID:          uuid.New(),
		OrderID:     orderID,
		CustomerID:  uuid.New(),
		Amount:      decimal.RequireFromString("470.00"),
		ProviderRef: &ref,
		Status:      enums.PaymentStatusProcessing,
	}
	fx.orders.order = &models.Order{ID: orderID, OrderNumber: "FM-20260829-ABCDEF", Status: enums.OrderStatusPending}

	err := fx.svc.FailFromProvider(context.Background(), &stripe.PaymentIntent{
		ID:               ref,
		LastPaymentError: &stripe.Error{Msg: "card_declined"},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if fx.repo.payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", fx.repo.payment.Status)
	}
	reason, _ := fx.repo.updates["failure_reason"].(*string)
	if reason == nil || *reason != "card_declined" {
		t.Fatalf("expected failure reason, got %+v", fx.repo.updates)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected payment failed event, got %+v", fx.outbox.events)
	}
}

func TestRefundNegativeAmountRejected(t *testing.T) {
	fx := newPaymentsFixture(t)
	_, err := fx.svc.Refund(context.Background(), RefundInput{
		PaymentID: uuid.New(),
		Amount:    decimal.RequireFromString("-5"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
