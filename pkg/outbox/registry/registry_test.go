package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
)

func testConfig() config.PubSubConfig {
	return config.PubSubConfig{
		OrdersTopic:       "orders-topic",
		NotificationTopic: "notification-topic",
		AnalyticsTopic:    "analytics-topic",
	}
}

func validEvent(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) models.OutboxEvent {
	t.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"orderId":"abc"}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestResolveRoutesOrderCreatedToAllPipelines(t *testing.T) {
	reg, err := NewEventRegistry(testConfig())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	resolved, err := reg.Resolve(validEvent(t, enums.EventOrderCreated, enums.AggregateOrder))
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	topics := resolved.Descriptor.Topics
	if len(topics) != 3 {
		t.Fatalf("unexpected topics: %v", topics)
	}
	want := map[string]bool{"orders-topic": true, "notification-topic": true, "analytics-topic": true}
	for _, topic := range topics {
		if !want[topic] {
			t.Fatalf("unexpected topic %q", topic)
		}
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope not decoded")
	}
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg, err := NewEventRegistry(testConfig())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	_, err = reg.Resolve(validEvent(t, enums.EventOrderCreated, enums.AggregatePayment))
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg, err := NewEventRegistry(testConfig())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	event := validEvent(t, enums.EventOrderCreated, enums.AggregateOrder)
	event.EventType = enums.OutboxEventType("mystery_event")
	var nonRetry NonRetryableError
	if _, err := reg.Resolve(event); !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsEmptyPayloadData(t *testing.T) {
	reg, err := NewEventRegistry(testConfig())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`null`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventReviewCreated,
		AggregateType: enums.AggregateReview,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
	var nonRetry NonRetryableError
	if _, err := reg.Resolve(event); !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	cfg := testConfig()
	cfg.AnalyticsTopic = ""
	if _, err := NewEventRegistry(cfg); err == nil {
		t.Fatalf("expected error for missing analytics topic")
	}
}
