package logistics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

type stubLogisticsRepo struct {
	point    *models.PickupPoint
	delivery *models.Delivery
	pending  bool

	pointUpdates    map[string]any
	deliveryUpdates map[string]any
}

func (s *stubLogisticsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLogisticsRepo) CreatePickupPoint(_ context.Context, point *models.PickupPoint) error {
	point.ID = uuid.New()
	s.point = point
	return nil
}

func (s *stubLogisticsRepo) FindPickupPoint(_ context.Context, id uuid.UUID) (*models.PickupPoint, error) {
	if s.point == nil || s.point.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.point
	return &clone, nil
}

func (s *stubLogisticsRepo) ListPickupPoints(_ context.Context, includeInactive bool) ([]models.PickupPoint, error) {
	if s.point == nil {
		return nil, nil
	}
	if !includeInactive && !s.point.IsActive {
		return nil, nil
	}
	return []models.PickupPoint{*s.point}, nil
}

func (s *stubLogisticsRepo) UpdatePickupPoint(_ context.Context, id uuid.UUID, updates map[string]any) error {
	s.pointUpdates = updates
	if s.point != nil && s.point.ID == id {
		if active, ok := updates["is_active"].(bool); ok {
			s.point.IsActive = active
		}
		if name, ok := updates["name"].(string); ok {
			s.point.Name = name
		}
		if capacity, ok := updates["capacity"].(int); ok {
			s.point.Capacity = capacity
		}
	}
	return nil
}

func (s *stubLogisticsRepo) PickupPointHasPendingDeliveries(context.Context, uuid.UUID) (bool, error) {
	return s.pending, nil
}

func (s *stubLogisticsRepo) FindDelivery(_ context.Context, id uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.delivery
	return &clone, nil
}

func (s *stubLogisticsRepo) FindDeliveryByOrder(_ context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.delivery
	return &clone, nil
}

func (s *stubLogisticsRepo) ListDeliveries(context.Context, DeliveryFilter, pagination.Params) ([]models.Delivery, int64, error) {
	panic("not implemented")
}

func (s *stubLogisticsRepo) UpdateDelivery(_ context.Context, id uuid.UUID, updates map[string]any) error {
	s.deliveryUpdates = updates
	if s.delivery != nil && s.delivery.ID == id {
		if status, ok := updates["status"].(enums.DeliveryStatus); ok {
			s.delivery.Status = status
		}
		if driver, ok := updates["driver"].(*types.JSONMap); ok {
			s.delivery.Driver = driver
		}
		if date, ok := updates["scheduled_date"].(time.Time); ok {
			s.delivery.ScheduledDate = date
		}
	}
	return nil
}

type logisticsFixture struct {
	service Service
	repo    *stubLogisticsRepo
}

func newLogisticsFixture(t *testing.T) *logisticsFixture {
	t.Helper()
	repo := &stubLogisticsRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &logisticsFixture{service: svc, repo: repo}
}

func validAddress() *types.Address {
	return &types.Address{
		Street:     "12 Market Lane",
		City:       "Riverside",
		PostalCode: "440021",
		Country:    "RU",
	}
}

func (f *logisticsFixture) seedPoint() *models.PickupPoint {
	f.repo.point = &models.PickupPoint{
		ID:       uuid.New(),
		Name:     "Central Depot",
		Address:  *validAddress(),
		Capacity: 100,
		IsActive: true,
	}
	return f.repo.point
}

func (f *logisticsFixture) seedDelivery(dtype enums.DeliveryType, status enums.DeliveryStatus) *models.Delivery {
	f.repo.delivery = &models.Delivery{
		ID:            uuid.New(),
		OrderID:       uuid.New(),
		Type:          dtype,
		Status:        status,
		ScheduledDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	return f.repo.delivery
}

func TestCreatePickupPointDefaults(t *testing.T) {
	f := newLogisticsFixture(t)

	dto, err := f.service.CreatePickupPoint(context.Background(), PickupPointInput{
		Name:    "Central Depot",
		Address: validAddress(),
	})
	if err != nil {
		t.Fatalf("CreatePickupPoint: %v", err)
	}
	if dto.Capacity != 100 {
		t.Fatalf("expected default capacity 100, got %d", dto.Capacity)
	}
	if !dto.IsActive {
		t.Fatal("new pickup point must be active")
	}
}

func TestCreatePickupPointRequiresAddress(t *testing.T) {
	f := newLogisticsFixture(t)

	_, err := f.service.CreatePickupPoint(context.Background(), PickupPointInput{Name: "Depot"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePickupPointRejectsIncompleteAddress(t *testing.T) {
	f := newLogisticsFixture(t)

	_, err := f.service.CreatePickupPoint(context.Background(), PickupPointInput{
		Name:    "Depot",
		Address: &types.Address{City: "Riverside"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdatePickupPointRejectsEmptyInput(t *testing.T) {
	f := newLogisticsFixture(t)
	point := f.seedPoint()

	_, err := f.service.UpdatePickupPoint(context.Background(), point.ID, PickupPointInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdatePickupPointAppliesFields(t *testing.T) {
	f := newLogisticsFixture(t)
	point := f.seedPoint()

	capacity := 250
	dto, err := f.service.UpdatePickupPoint(context.Background(), point.ID, PickupPointInput{
		Name:     "North Depot",
		Capacity: &capacity,
	})
	if err != nil {
		t.Fatalf("UpdatePickupPoint: %v", err)
	}
	if dto.Name != "North Depot" {
		t.Fatalf("expected renamed point, got %q", dto.Name)
	}
	if dto.Capacity != 250 {
		t.Fatalf("expected capacity 250, got %d", dto.Capacity)
	}
	if _, ok := f.repo.pointUpdates["is_active"]; ok {
		t.Fatal("untouched field must not be written")
	}
}

func TestDeactivatePickupPointBlockedByPendingDeliveries(t *testing.T) {
	f := newLogisticsFixture(t)
	point := f.seedPoint()
	f.repo.pending = true

	err := f.service.DeactivatePickupPoint(context.Background(), point.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !f.repo.point.IsActive {
		t.Fatal("point must stay active when deliveries are pending")
	}
}

func TestDeactivatePickupPoint(t *testing.T) {
	f := newLogisticsFixture(t)
	point := f.seedPoint()

	if err := f.service.DeactivatePickupPoint(context.Background(), point.ID); err != nil {
		t.Fatalf("DeactivatePickupPoint: %v", err)
	}
	if f.repo.point.IsActive {
		t.Fatal("point must be deactivated")
	}
}

func TestListPickupPointsSkipsInactiveByDefault(t *testing.T) {
	f := newLogisticsFixture(t)
	point := f.seedPoint()
	point.IsActive = false

	points, err := f.service.ListPickupPoints(context.Background(), false)
	if err != nil {
		t.Fatalf("ListPickupPoints: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected no active points, got %d", len(points))
	}

	points, err = f.service.ListPickupPoints(context.Background(), true)
	if err != nil {
		t.Fatalf("ListPickupPoints: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected one point with inactive included, got %d", len(points))
	}
}

func TestAssignDriverUpdatesStatus(t *testing.T) {
	f := newLogisticsFixture(t)
	delivery := f.seedDelivery(enums.DeliveryTypeDelivery, enums.DeliveryStatusPending)

	dto, err := f.service.AssignDriver(context.Background(), AssignDriverInput{
		DeliveryID: delivery.ID,
		Driver:     types.JSONMap{"name": "Pavel", "phone": "+7 900 000-00-00"},
	})
	if err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if dto.Status != enums.DeliveryStatusAssigned {
		t.Fatalf("expected assigned status, got %s", dto.Status)
	}
	if dto.Driver == nil || (*dto.Driver)["name"] != "Pavel" {
		t.Fatalf("expected driver details, got %+v", dto.Driver)
	}
}

func TestAssignDriverRejectsPickupOrders(t *testing.T) {
	f := newLogisticsFixture(t)
	delivery := f.seedDelivery(enums.DeliveryTypePickup, enums.DeliveryStatusPending)

	_, err := f.service.AssignDriver(context.Background(), AssignDriverInput{
		DeliveryID: delivery.ID,
		Driver:     types.JSONMap{"name": "Pavel"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAssignDriverRejectsCompletedDelivery(t *testing.T) {
	f := newLogisticsFixture(t)
	delivery := f.seedDelivery(enums.DeliveryTypeDelivery, enums.DeliveryStatusDelivered)

	_, err := f.service.AssignDriver(context.Background(), AssignDriverInput{
		DeliveryID: delivery.ID,
		Driver:     types.JSONMap{"name": "Pavel"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAssignDriverRequiresDetails(t *testing.T) {
	f := newLogisticsFixture(t)
	delivery := f.seedDelivery(enums.DeliveryTypeDelivery, enums.DeliveryStatusPending)

	_, err := f.service.AssignDriver(context.Background(), AssignDriverInput{DeliveryID: delivery.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRescheduleMovesDate(t *testing.T) {
	f := newLogisticsFixture(t)
	delivery := f.seedDelivery(enums.DeliveryTypeDelivery, enums.DeliveryStatusAssigned)
	newDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	dto, err := f.service.Reschedule(context.Background(), delivery.ID, newDate, nil)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !dto.ScheduledDate.Equal(newDate) {
		t.Fatalf("expected rescheduled date %s, got %s", newDate, dto.ScheduledDate)
	}
	if _, ok := f.repo.deliveryUpdates["time_slot"]; ok {
		t.Fatal("time slot must not be written when omitted")
	}
}

func TestRescheduleRejectsCancelledDelivery(t *testing.T) {
	f := newLogisticsFixture(t)
	delivery := f.seedDelivery(enums.DeliveryTypeDelivery, enums.DeliveryStatusCancelled)

	_, err := f.service.Reschedule(context.Background(), delivery.ID, time.Now().UTC(), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestGetDeliveryByOrder(t *testing.T) {
	f := newLogisticsFixture(t)
	delivery := f.seedDelivery(enums.DeliveryTypeDelivery, enums.DeliveryStatusPending)

	dto, err := f.service.GetDeliveryByOrder(context.Background(), delivery.OrderID)
	if err != nil {
		t.Fatalf("GetDeliveryByOrder: %v", err)
	}
	if dto.ID != delivery.ID {
		t.Fatalf("expected delivery %s, got %s", delivery.ID, dto.ID)
	}

	_, err = f.service.GetDeliveryByOrder(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
