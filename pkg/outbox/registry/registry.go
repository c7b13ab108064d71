package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
)

// EventDescriptor links an event type to its aggregate and destination topics.
// One event can fan out to several topics: an order cancellation feeds both
// the notification consumer and the analytics pipeline.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topics        []string
}

// ResolvedEvent is the result of validating and decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	if cfg.AnalyticsTopic == "" {
		return nil, fmt.Errorf("analytics topic is required")
	}

	orders := cfg.OrdersTopic
	notifications := cfg.NotificationTopic
	analytics := cfg.AnalyticsTopic

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Topics:        []string{orders, notifications, analytics},
		},
		{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			Topics:        []string{orders, notifications},
		},
		{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			Topics:        []string{orders, notifications, analytics},
		},
		{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			Topics:        []string{orders, notifications, analytics},
		},
		{
			EventType:     enums.EventPaymentSucceeded,
			AggregateType: enums.AggregatePayment,
			Topics:        []string{notifications, analytics},
		},
		{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			Topics:        []string{notifications},
		},
		{
			EventType:     enums.EventRefundRecorded,
			AggregateType: enums.AggregatePayment,
			Topics:        []string{analytics},
		},
		{
			EventType:     enums.EventProductLowStock,
			AggregateType: enums.AggregateProduct,
			Topics:        []string{notifications},
		},
		{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateReview,
			Topics:        []string{notifications, analytics},
		},
		{
			EventType:     enums.EventFarmerVerified,
			AggregateType: enums.AggregateFarmer,
			Topics:        []string{notifications},
		},
		{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateOrder,
			Topics:        []string{notifications},
		},
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row and decodes its payload envelope.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope}, nil
}
