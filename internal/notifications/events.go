package notifications

import (
	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// NotificationRequestedEvent asks the notification consumer to deliver an
// arbitrary message. Background jobs emit it when they have no domain event
// of their own.
type NotificationRequestedEvent struct {
	UserID   uuid.UUID                  `json:"userId"`
	Type     enums.NotificationType     `json:"type"`
	Title    string                     `json:"title"`
	Message  string                     `json:"message"`
	Data     *types.JSONMap             `json:"data,omitempty"`
	Priority enums.NotificationPriority `json:"priority,omitempty"`
	Channel  enums.NotificationChannel  `json:"channel,omitempty"`
}
