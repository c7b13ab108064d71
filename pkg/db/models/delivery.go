package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// Delivery tracks the fulfillment leg of a single order.
type Delivery struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:deliveries_order_id_key"`
	Type          enums.DeliveryType   `gorm:"column:type;type:delivery_type;not null"`
	Status        enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`
	Driver        *types.JSONMap       `gorm:"column:driver;type:jsonb;serializer:json"`
	Address       *types.Address       `gorm:"column:address;type:jsonb"`
	PickupPointID *uuid.UUID           `gorm:"column:pickup_point_id;type:uuid"`
	ScheduledDate time.Time            `gorm:"column:scheduled_date;not null"`
	TimeSlot      *types.TimeSlot      `gorm:"column:time_slot;type:jsonb"`
	DeliveredAt   *time.Time           `gorm:"column:delivered_at"`
	Fee           decimal.Decimal      `gorm:"column:fee;type:numeric(12,2);not null;default:0"`
	Notes         *string              `gorm:"column:notes"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// PickupPoint is a staffed location where pickup orders are collected.
type PickupPoint struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string         `gorm:"column:name;not null"`
	Address      types.Address  `gorm:"column:address;type:jsonb;not null"`
	WorkingHours *types.JSONMap `gorm:"column:working_hours;type:jsonb;serializer:json"`
	Phone        *string        `gorm:"column:phone"`
	Email        *string        `gorm:"column:email"`
	Capacity     int            `gorm:"column:capacity;not null;default:100"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
