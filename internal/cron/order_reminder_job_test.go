package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/internal/notifications"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

type fakeStaleOrderReader struct {
	cutoff time.Time
	orders []models.Order
}

func (f *fakeStaleOrderReader) FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	f.cutoff = cutoff
	return f.orders, nil
}

func TestOrderReminderJobEmitsNotificationRequest(t *testing.T) {
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	order := models.Order{ID: uuid.New(), CustomerID: uuid.New(), OrderNumber: "FM-20260209-ABC234"}
	reader := &fakeStaleOrderReader{orders: []models.Order{order}}
	emitter := &fakeOutboxEmitter{}

	jobIface, err := NewOrderReminderJob(OrderReminderJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		DB:     fakeTxRunner{},
		Orders: reader,
		Outbox: emitter,
	})
	if err != nil {
		t.Fatalf("NewOrderReminderJob: %v", err)
	}
	job := jobIface.(*orderReminderJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-defaultReminderAfter)
	if !reader.cutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, reader.cutoff)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventNotificationRequested {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	if event.AggregateID != order.ID {
		t.Fatalf("unexpected aggregate id: %s", event.AggregateID)
	}
	payload, ok := event.Data.(notifications.NotificationRequestedEvent)
	if !ok {
		t.Fatal("expected notification request payload")
	}
	if payload.UserID != order.CustomerID {
		t.Fatalf("reminder must target the customer, got %s", payload.UserID)
	}
	if payload.Type != enums.NotificationTypeSystem {
		t.Fatalf("unexpected notification type: %s", payload.Type)
	}
}

func TestOrderReminderJobCustomWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	reader := &fakeStaleOrderReader{}

	jobIface, err := NewOrderReminderJob(OrderReminderJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		DB:            fakeTxRunner{},
		Orders:        reader,
		Outbox:        &fakeOutboxEmitter{},
		ReminderAfter: 6 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOrderReminderJob: %v", err)
	}
	job := jobIface.(*orderReminderJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reader.cutoff.Equal(now.Add(-6 * time.Hour)) {
		t.Fatalf("expected 6h cutoff, got %s", reader.cutoff)
	}
}
