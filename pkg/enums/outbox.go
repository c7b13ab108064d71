package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregatePayment      OutboxAggregateType = "payment"
	AggregateProduct      OutboxAggregateType = "product"
	AggregateReview       OutboxAggregateType = "review"
	AggregateFarmer       OutboxAggregateType = "farmer"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateProduct,
	AggregateReview,
	AggregateFarmer,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventOrderDelivered        OutboxEventType = "order_delivered"
	EventPaymentSucceeded      OutboxEventType = "payment_succeeded"
	EventPaymentFailed         OutboxEventType = "payment_failed"
	EventRefundRecorded        OutboxEventType = "refund_recorded"
	EventProductLowStock       OutboxEventType = "product_low_stock"
	EventReviewCreated         OutboxEventType = "review_created"
	EventFarmerVerified        OutboxEventType = "farmer_verified"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventOrderDelivered,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventRefundRecorded,
	EventProductLowStock,
	EventReviewCreated,
	EventFarmerVerified,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
