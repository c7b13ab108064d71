package logistics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// PickupPointInput describes a pickup location create or update.
type PickupPointInput struct {
	Name         string
	Address      *types.Address
	WorkingHours *types.JSONMap
	Phone        *string
	Email        *string
	Capacity     *int
	IsActive     *bool
}

// AssignDriverInput attaches courier details to a delivery.
type AssignDriverInput struct {
	DeliveryID uuid.UUID
	Driver     types.JSONMap
	Notes      *string
}

// Service defines pickup point and delivery operations.
type Service interface {
	CreatePickupPoint(ctx context.Context, input PickupPointInput) (*PickupPointDTO, error)
	GetPickupPoint(ctx context.Context, id uuid.UUID) (*PickupPointDTO, error)
	ListPickupPoints(ctx context.Context, includeInactive bool) ([]*PickupPointDTO, error)
	UpdatePickupPoint(ctx context.Context, id uuid.UUID, input PickupPointInput) (*PickupPointDTO, error)
	DeactivatePickupPoint(ctx context.Context, id uuid.UUID) error

	GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*DeliveryDTO, error)
	ListDeliveries(ctx context.Context, filter DeliveryFilter, params pagination.Params) ([]*DeliveryDTO, int64, error)
	AssignDriver(ctx context.Context, input AssignDriverInput) (*DeliveryDTO, error)
	Reschedule(ctx context.Context, deliveryID uuid.UUID, date time.Time, slot *types.TimeSlot) (*DeliveryDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds the logistics service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("logistics repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreatePickupPoint(ctx context.Context, input PickupPointInput) (*PickupPointDTO, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup point name required")
	}
	if input.Address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup point address required")
	}
	if err := input.Address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}

	point := &models.PickupPoint{
		Name:         input.Name,
		Address:      *input.Address,
		WorkingHours: input.WorkingHours,
		Phone:        input.Phone,
		Email:        input.Email,
		IsActive:     true,
	}
	if input.Capacity != nil {
		if *input.Capacity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must be positive")
		}
		point.Capacity = *input.Capacity
	} else {
		point.Capacity = 100
	}

	if err := s.repo.CreatePickupPoint(ctx, point); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pickup point")
	}
	return PickupPointFromModel(point), nil
}

func (s *service) GetPickupPoint(ctx context.Context, id uuid.UUID) (*PickupPointDTO, error) {
	point, err := s.findPickupPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	return PickupPointFromModel(point), nil
}

func (s *service) ListPickupPoints(ctx context.Context, includeInactive bool) ([]*PickupPointDTO, error) {
	points, err := s.repo.ListPickupPoints(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickup points")
	}
	return PickupPointsFromModels(points), nil
}

func (s *service) UpdatePickupPoint(ctx context.Context, id uuid.UUID, input PickupPointInput) (*PickupPointDTO, error) {
	if _, err := s.findPickupPoint(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != "" {
		updates["name"] = input.Name
	}
	if input.Address != nil {
		if err := input.Address.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
		}
		updates["address"] = input.Address
	}
	if input.WorkingHours != nil {
		updates["working_hours"] = input.WorkingHours
	}
	if input.Phone != nil {
		updates["phone"] = input.Phone
	}
	if input.Email != nil {
		updates["email"] = input.Email
	}
	if input.Capacity != nil {
		if *input.Capacity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must be positive")
		}
		updates["capacity"] = *input.Capacity
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.UpdatePickupPoint(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pickup point")
	}

	point, err := s.findPickupPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	return PickupPointFromModel(point), nil
}

func (s *service) DeactivatePickupPoint(ctx context.Context, id uuid.UUID) error {
	if _, err := s.findPickupPoint(ctx, id); err != nil {
		return err
	}

	pending, err := s.repo.PickupPointHasPendingDeliveries(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending deliveries")
	}
	if pending {
		return pkgerrors.New(pkgerrors.CodeConflict, "pickup point has pending deliveries")
	}

	if err := s.repo.UpdatePickupPoint(ctx, id, map[string]any{"is_active": false}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate pickup point")
	}
	return nil
}

func (s *service) GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*DeliveryDTO, error) {
	delivery, err := s.repo.FindDeliveryByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return DeliveryFromModel(delivery), nil
}

func (s *service) ListDeliveries(ctx context.Context, filter DeliveryFilter, params pagination.Params) ([]*DeliveryDTO, int64, error) {
	params = params.Normalize()
	deliveries, total, err := s.repo.ListDeliveries(ctx, filter, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
	}
	return DeliveriesFromModels(deliveries), total, nil
}

func (s *service) AssignDriver(ctx context.Context, input AssignDriverInput) (*DeliveryDTO, error) {
	delivery, err := s.findDelivery(ctx, input.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Type != enums.DeliveryTypeDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pickup orders have no courier")
	}
	switch delivery.Status {
	case enums.DeliveryStatusDelivered, enums.DeliveryStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery already completed")
	}
	if len(input.Driver) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver details required")
	}

	updates := map[string]any{
		"driver": &input.Driver,
		"status": enums.DeliveryStatusAssigned,
	}
	if input.Notes != nil {
		updates["notes"] = input.Notes
	}
	if err := s.repo.UpdateDelivery(ctx, delivery.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
	}

	updated, err := s.findDelivery(ctx, delivery.ID)
	if err != nil {
		return nil, err
	}
	return DeliveryFromModel(updated), nil
}

func (s *service) Reschedule(ctx context.Context, deliveryID uuid.UUID, date time.Time, slot *types.TimeSlot) (*DeliveryDTO, error) {
	delivery, err := s.findDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	switch delivery.Status {
	case enums.DeliveryStatusDelivered, enums.DeliveryStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery already completed")
	}
	if date.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled date required")
	}

	updates := map[string]any{"scheduled_date": date}
	if slot != nil {
		updates["time_slot"] = slot
	}
	if err := s.repo.UpdateDelivery(ctx, deliveryID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reschedule delivery")
	}

	updated, err := s.findDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	return DeliveryFromModel(updated), nil
}

func (s *service) findPickupPoint(ctx context.Context, id uuid.UUID) (*models.PickupPoint, error) {
	point, err := s.repo.FindPickupPoint(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup point not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup point")
	}
	return point, nil
}

func (s *service) findDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindDelivery(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}
