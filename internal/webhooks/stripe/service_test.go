package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"
)

type stubSettler struct {
	confirmed []*stripe.PaymentIntent
	failed    []*stripe.PaymentIntent
	err       error
}

func (s *stubSettler) ConfirmFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error {
	if s.err != nil {
		return s.err
	}
	s.confirmed = append(s.confirmed, intent)
	return nil
}

func (s *stubSettler) FailFromProvider(ctx context.Context, intent *stripe.PaymentIntent) error {
	if s.err != nil {
		return s.err
	}
	s.failed = append(s.failed, intent)
	return nil
}

func intentEvent(t *testing.T, eventType stripe.EventType, intentID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(&stripe.PaymentIntent{ID: intentID})
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + intentID,
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventConfirmsSucceededIntent(t *testing.T) {
	settler := &stubSettler{}
	service, err := NewService(settler)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_123")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(settler.confirmed) != 1 || settler.confirmed[0].ID != "pi_123" {
		t.Fatalf("expected confirm call, got %+v", settler.confirmed)
	}
	if len(settler.failed) != 0 {
		t.Fatal("unexpected fail call")
	}
}

func TestHandleEventFailsDeclinedIntent(t *testing.T) {
	settler := &stubSettler{}
	service, _ := NewService(settler)

	event := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, "pi_456")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(settler.failed) != 1 || settler.failed[0].ID != "pi_456" {
		t.Fatalf("expected fail call, got %+v", settler.failed)
	}
}

func TestHandleEventCancelledIntentTreatedAsFailure(t *testing.T) {
	settler := &stubSettler{}
	service, _ := NewService(settler)

	event := intentEvent(t, stripe.EventTypePaymentIntentCanceled, "pi_789")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(settler.failed) != 1 {
		t.Fatalf("expected fail call, got %+v", settler.failed)
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	settler := &stubSettler{}
	service, _ := NewService(settler)

	event := intentEvent(t, stripe.EventType("charge.updated"), "pi_000")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown types must be acknowledged, got %v", err)
	}
	if len(settler.confirmed) != 0 || len(settler.failed) != 0 {
		t.Fatal("unexpected settlement call")
	}
}

func TestHandleEventPropagatesSettlerError(t *testing.T) {
	settler := &stubSettler{err: errors.New("db down")}
	service, _ := NewService(settler)

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_err")
	if err := service.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected error")
	}
}

type fakeIdempotencyStore struct {
	keys map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: map[string]string{}}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.keys[key]; exists {
		return false, nil
	}
	f.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestIdempotencyGuardMarksFirstDelivery(t *testing.T) {
	store := newFakeIdempotencyStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe-webhook")
	if err != nil {
		t.Fatalf("setup guard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if seen {
		t.Fatal("first delivery must not be marked as seen")
	}

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !seen {
		t.Fatal("second delivery must be deduplicated")
	}
}

func TestIdempotencyGuardDeleteAllowsRetry(t *testing.T) {
	store := newFakeIdempotencyStore()
	guard, _ := NewIdempotencyGuard(store, time.Hour, "stripe-webhook")

	if _, err := guard.CheckAndMark(context.Background(), "evt_2"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := guard.Delete(context.Background(), "evt_2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, err := guard.CheckAndMark(context.Background(), "evt_2")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if seen {
		t.Fatal("deleted marker must allow a retry")
	}
}
