package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/internal/analytics/types"
	"github.com/farmarket/farmarket-backend/pkg/enums"
)

type captureInserter struct {
	rows []types.MarketplaceEventRow
	err  error
}

func (c *captureInserter) Insert(_ context.Context, row types.MarketplaceEventRow) error {
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, row)
	return nil
}

func envelopeWith(t *testing.T, eventType enums.AnalyticsEventType, payload map[string]any) types.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		Payload:    raw,
	}
}

func TestRecorderMapsOrderTotalsToMinorUnits(t *testing.T) {
	sink := &captureInserter{}
	recorder, err := NewEventRecorder(sink, "RUB")
	if err != nil {
		t.Fatalf("NewEventRecorder: %v", err)
	}
	orderID := uuid.New()
	customerID := uuid.New()

	envelope := envelopeWith(t, enums.AnalyticsEventOrderCreated, map[string]any{
		"orderId":    orderID,
		"customerId": customerID,
		"total":      "470.00",
	})
	if err := recorder.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sink.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(sink.rows))
	}
	row := sink.rows[0]
	if !row.AmountMinor.Valid || row.AmountMinor.Int64 != 47000 {
		t.Fatalf("expected 47000 minor units, got %+v", row.AmountMinor)
	}
	if !row.OrderID.Valid || row.OrderID.StringVal != orderID.String() {
		t.Fatalf("expected order id column, got %+v", row.OrderID)
	}
	if !row.CustomerID.Valid || row.CustomerID.StringVal != customerID.String() {
		t.Fatalf("expected customer id column, got %+v", row.CustomerID)
	}
	if !row.Currency.Valid || row.Currency.StringVal != "RUB" {
		t.Fatalf("expected currency RUB, got %+v", row.Currency)
	}
	if !row.OccurredAt.Valid {
		t.Fatal("expected occurred_at to be set")
	}
}

func TestRecorderFallsBackToAmountField(t *testing.T) {
	sink := &captureInserter{}
	recorder, err := NewEventRecorder(sink, "RUB")
	if err != nil {
		t.Fatalf("NewEventRecorder: %v", err)
	}

	envelope := envelopeWith(t, enums.AnalyticsEventOrderPaid, map[string]any{
		"paymentId": uuid.New(),
		"amount":    "99.95",
	})
	if err := recorder.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	row := sink.rows[0]
	if !row.AmountMinor.Valid || row.AmountMinor.Int64 != 9995 {
		t.Fatalf("expected 9995 minor units, got %+v", row.AmountMinor)
	}
}

func TestRecorderMoneylessEventHasNullAmount(t *testing.T) {
	sink := &captureInserter{}
	recorder, err := NewEventRecorder(sink, "RUB")
	if err != nil {
		t.Fatalf("NewEventRecorder: %v", err)
	}

	envelope := envelopeWith(t, enums.AnalyticsEventReviewSubmitted, map[string]any{
		"reviewId": uuid.New(),
		"rating":   5,
	})
	if err := recorder.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sink.rows[0].AmountMinor.Valid {
		t.Fatalf("expected null amount, got %+v", sink.rows[0].AmountMinor)
	}
}

func TestRecorderRejectsMalformedPayload(t *testing.T) {
	sink := &captureInserter{}
	recorder, err := NewEventRecorder(sink, "RUB")
	if err != nil {
		t.Fatalf("NewEventRecorder: %v", err)
	}

	envelope := types.Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.AnalyticsEventOrderCreated,
		Payload:   json.RawMessage(`{"total":`),
	}
	if err := recorder.Handle(context.Background(), envelope); err == nil {
		t.Fatal("expected parse error")
	}
	if len(sink.rows) != 0 {
		t.Fatal("no row must be written for malformed payloads")
	}
}
