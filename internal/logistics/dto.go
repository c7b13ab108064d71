package logistics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// PickupPointDTO is a pickup location rendered for clients.
type PickupPointDTO struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Address      types.Address  `json:"address"`
	WorkingHours *types.JSONMap `json:"workingHours,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	Email        *string        `json:"email,omitempty"`
	Capacity     int            `json:"capacity"`
	IsActive     bool           `json:"isActive"`
}

// DeliveryDTO is a fulfillment leg rendered for clients.
type DeliveryDTO struct {
	ID            uuid.UUID            `json:"id"`
	OrderID       uuid.UUID            `json:"orderId"`
	Type          enums.DeliveryType   `json:"type"`
	Status        enums.DeliveryStatus `json:"status"`
	Driver        *types.JSONMap       `json:"driver,omitempty"`
	Address       *types.Address       `json:"address,omitempty"`
	PickupPointID *uuid.UUID           `json:"pickupPointId,omitempty"`
	ScheduledDate time.Time            `json:"scheduledDate"`
	TimeSlot      *types.TimeSlot      `json:"timeSlot,omitempty"`
	DeliveredAt   *time.Time           `json:"deliveredAt,omitempty"`
	Fee           decimal.Decimal      `json:"fee"`
	Notes         *string              `json:"notes,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// PickupPointFromModel maps a pickup point row onto its DTO.
func PickupPointFromModel(p *models.PickupPoint) *PickupPointDTO {
	return &PickupPointDTO{
		ID:           p.ID,
		Name:         p.Name,
		Address:      p.Address,
		WorkingHours: p.WorkingHours,
		Phone:        p.Phone,
		Email:        p.Email,
		Capacity:     p.Capacity,
		IsActive:     p.IsActive,
	}
}

// PickupPointsFromModels maps pickup point rows onto DTOs.
func PickupPointsFromModels(rows []models.PickupPoint) []*PickupPointDTO {
	dtos := make([]*PickupPointDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, PickupPointFromModel(&rows[i]))
	}
	return dtos
}

// DeliveryFromModel maps a delivery row onto its DTO.
func DeliveryFromModel(d *models.Delivery) *DeliveryDTO {
	return &DeliveryDTO{
		ID:            d.ID,
		OrderID:       d.OrderID,
		Type:          d.Type,
		Status:        d.Status,
		Driver:        d.Driver,
		Address:       d.Address,
		PickupPointID: d.PickupPointID,
		ScheduledDate: d.ScheduledDate,
		TimeSlot:      d.TimeSlot,
		DeliveredAt:   d.DeliveredAt,
		Fee:           d.Fee,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
	}
}

// DeliveriesFromModels maps delivery rows onto DTOs.
func DeliveriesFromModels(rows []models.Delivery) []*DeliveryDTO {
	dtos := make([]*DeliveryDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, DeliveryFromModel(&rows[i]))
	}
	return dtos
}
