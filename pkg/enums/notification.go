package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderCreated    NotificationType = "order_created"
	NotificationTypeOrderConfirmed  NotificationType = "order_confirmed"
	NotificationTypeOrderShipped    NotificationType = "order_shipped"
	NotificationTypeOrderDelivered  NotificationType = "order_delivered"
	NotificationTypeOrderCancelled  NotificationType = "order_cancelled"
	NotificationTypePaymentReceived NotificationType = "payment_received"
	NotificationTypePaymentFailed   NotificationType = "payment_failed"
	NotificationTypeReviewReceived  NotificationType = "review_received"
	NotificationTypeProductLowStock NotificationType = "product_low_stock"
	NotificationTypeFarmerVerified  NotificationType = "farmer_verified"
	NotificationTypePromotion       NotificationType = "promotion"
	NotificationTypeSystem          NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderCreated,
	NotificationTypeOrderConfirmed,
	NotificationTypeOrderShipped,
	NotificationTypeOrderDelivered,
	NotificationTypeOrderCancelled,
	NotificationTypePaymentReceived,
	NotificationTypePaymentFailed,
	NotificationTypeReviewReceived,
	NotificationTypeProductLowStock,
	NotificationTypeFarmerVerified,
	NotificationTypePromotion,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationPriority orders delivery urgency.
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityUrgent NotificationPriority = "urgent"
)

var validNotificationPriorities = []NotificationPriority{
	NotificationPriorityLow,
	NotificationPriorityMedium,
	NotificationPriorityHigh,
	NotificationPriorityUrgent,
}

// IsValid checks whether the given priority matches the canonical enum.
func (n NotificationPriority) IsValid() bool {
	for _, candidate := range validNotificationPriorities {
		if candidate == n {
			return true
		}
	}
	return false
}

// NotificationChannel selects the transport for a notification.
type NotificationChannel string

const (
	NotificationChannelInApp NotificationChannel = "in_app"
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelPush  NotificationChannel = "push"
)

var validNotificationChannels = []NotificationChannel{
	NotificationChannelInApp,
	NotificationChannelEmail,
	NotificationChannelPush,
}

// IsValid checks whether the given channel matches the canonical enum.
func (n NotificationChannel) IsValid() bool {
	for _, candidate := range validNotificationChannels {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationChannel converts raw strings into NotificationChannel.
func ParseNotificationChannel(value string) (NotificationChannel, error) {
	for _, candidate := range validNotificationChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification channel %q", value)
}
