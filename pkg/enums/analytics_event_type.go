package enums

import "fmt"

// AnalyticsEventType is the canonical event_type for analytics routing.
type AnalyticsEventType string

const (
	AnalyticsEventOrderCreated     AnalyticsEventType = "order_created"
	AnalyticsEventOrderPaid        AnalyticsEventType = "order_paid"
	AnalyticsEventOrderCancelled   AnalyticsEventType = "order_cancelled"
	AnalyticsEventOrderDelivered   AnalyticsEventType = "order_delivered"
	AnalyticsEventRefundRecorded   AnalyticsEventType = "refund_recorded"
	AnalyticsEventProductViewed    AnalyticsEventType = "product_viewed"
	AnalyticsEventReviewSubmitted  AnalyticsEventType = "review_submitted"
	AnalyticsEventPromoCodeApplied AnalyticsEventType = "promo_code_applied"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventOrderCreated,
	AnalyticsEventOrderPaid,
	AnalyticsEventOrderCancelled,
	AnalyticsEventOrderDelivered,
	AnalyticsEventRefundRecorded,
	AnalyticsEventProductViewed,
	AnalyticsEventReviewSubmitted,
	AnalyticsEventPromoCodeApplied,
}

// IsValid reports whether the value matches the canonical analytics event_type enum.
func (a AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts the raw string to AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
