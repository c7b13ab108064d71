package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// Notification is one in-app message delivered to a user.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	Type      enums.NotificationType     `gorm:"column:type;type:notification_type;not null"`
	Title     string                     `gorm:"column:title;not null"`
	Message   string                     `gorm:"column:message;not null"`
	Data      *types.JSONMap             `gorm:"column:data;type:jsonb;serializer:json"`
	Priority  enums.NotificationPriority `gorm:"column:priority;type:notification_priority;not null;default:'medium'"`
	Channel   enums.NotificationChannel  `gorm:"column:channel;type:notification_channel;not null;default:'in_app'"`
	IsRead    bool                       `gorm:"column:is_read;not null;default:false"`
	ReadAt    *time.Time                 `gorm:"column:read_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
