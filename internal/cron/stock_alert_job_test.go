package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/orders"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeLowStockReader struct {
	products []models.Product
	err      error
}

func (f *fakeLowStockReader) FindLowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

type fakeOutboxEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeOutboxEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newStockAlertJob(t *testing.T, reader *fakeLowStockReader, emitter *fakeOutboxEmitter) Job {
	t.Helper()
	job, err := NewStockAlertJob(StockAlertJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		DB:        fakeTxRunner{},
		Products:  reader,
		Outbox:    emitter,
		Threshold: 5,
	})
	if err != nil {
		t.Fatalf("NewStockAlertJob: %v", err)
	}
	return job
}

func TestStockAlertJobEmitsPerLowProduct(t *testing.T) {
	low := models.Product{ID: uuid.New(), FarmerID: uuid.New(), Name: "Eggs", Quantity: 3}
	reader := &fakeLowStockReader{products: []models.Product{low}}
	emitter := &fakeOutboxEmitter{}
	job := newStockAlertJob(t, reader, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventProductLowStock {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	if event.AggregateID != low.ID {
		t.Fatalf("unexpected aggregate id: %s", event.AggregateID)
	}
	payload, ok := event.Data.(orders.ProductLowStockEvent)
	if !ok {
		t.Fatal("expected low stock payload")
	}
	if payload.Remaining != 3 || payload.Threshold != 5 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.FarmerID != low.FarmerID {
		t.Fatalf("unexpected farmer id: %s", payload.FarmerID)
	}
}

func TestStockAlertJobNoLowProducts(t *testing.T) {
	reader := &fakeLowStockReader{}
	emitter := &fakeOutboxEmitter{}
	job := newStockAlertJob(t, reader, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("expected no events, got %d", len(emitter.events))
	}
}

func TestStockAlertJobPropagatesReadError(t *testing.T) {
	reader := &fakeLowStockReader{err: errors.New("boom")}
	job := newStockAlertJob(t, reader, &fakeOutboxEmitter{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
