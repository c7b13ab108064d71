package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  discount NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL,
  promo_code TEXT,
  delivery_type TEXT NOT NULL,
  delivery_address TEXT,
  pickup_point_id TEXT,
  time_slot TEXT,
  payment_method TEXT NOT NULL,
  notes TEXT,
  cancel_reason TEXT,
  confirmed_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  farmer_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  line_total NUMERIC NOT NULL,
  created_at DATETIME
);`
	orderTracking := `
CREATE TABLE order_tracking (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  note TEXT,
  updated_by TEXT NOT NULL,
  created_at DATETIME
);`
	payments := `
CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'RUB',
  method TEXT NOT NULL,
  provider TEXT NOT NULL DEFAULT 'stripe',
  status TEXT NOT NULL DEFAULT 'pending',
  provider_ref TEXT,
  failure_reason TEXT,
  refunded_amount NUMERIC NOT NULL DEFAULT 0,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec(orderTracking).Error)
	require.NoError(t, db.Exec(payments).Error)
	return db
}

func createTestOrder(t *testing.T, db *gorm.DB, customerID, farmerID uuid.UUID, number int, status enums.OrderStatus, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderNumber:   fmt.Sprintf("FM-20260310-%04d", number),
		CustomerID:    customerID,
		Status:        status,
		Subtotal:      decimal.NewFromInt(100),
		Total:         decimal.NewFromInt(100),
		DeliveryType:  enums.DeliveryTypeDelivery,
		PaymentMethod: enums.PaymentMethodCard,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	order.ID = uuid.New()
	require.NoError(t, db.Create(order).Error)

	item := &models.OrderItem{
		OrderID:     order.ID,
		ProductID:   uuid.New(),
		FarmerID:    farmerID,
		ProductName: "Heirloom Tomatoes",
		Unit:        enums.ProductUnitKilogram,
		UnitPrice:   decimal.NewFromInt(50),
		Quantity:    2,
		LineTotal:   decimal.NewFromInt(100),
		CreatedAt:   created,
	}
	item.ID = uuid.New()
	require.NoError(t, db.Create(item).Error)

	payment := &models.Payment{
		OrderID:    order.ID,
		CustomerID: customerID,
		Amount:     decimal.NewFromInt(100),
		Currency:   "RUB",
		Method:     enums.PaymentMethodCard,
		Provider:   enums.PaymentProviderStripe,
		Status:     enums.PaymentStatusPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	payment.ID = uuid.New()
	require.NoError(t, db.Create(payment).Error)
	return order
}

func TestRepositoryListByCustomer_pagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	customerID := uuid.New()
	farmerID := uuid.New()
	now := time.Now().UTC()
	createTestOrder(t, db, customerID, farmerID, 1, enums.OrderStatusPending, now.Add(-time.Hour))
	newest := createTestOrder(t, db, customerID, farmerID, 2, enums.OrderStatusConfirmed, now)
	createTestOrder(t, db, uuid.New(), farmerID, 3, enums.OrderStatusPending, now)

	list, total, err := repo.ListByCustomer(context.Background(), customerID, ListFilter{}, pagination.Params{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	assert.Equal(t, newest.OrderNumber, list[0].OrderNumber)
	require.Len(t, list[0].Items, 1)
	require.NotNil(t, list[0].Payment)
	assert.Equal(t, enums.PaymentStatusPending, list[0].Payment.Status)

	second, total, err := repo.ListByCustomer(context.Background(), customerID, ListFilter{}, pagination.Params{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, second, 1)
	assert.NotEqual(t, newest.OrderNumber, second[0].OrderNumber)
}

func TestRepositoryListByCustomer_statusFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	customerID := uuid.New()
	farmerID := uuid.New()
	now := time.Now().UTC()
	createTestOrder(t, db, customerID, farmerID, 1, enums.OrderStatusPending, now.Add(-time.Hour))
	confirmed := createTestOrder(t, db, customerID, farmerID, 2, enums.OrderStatusConfirmed, now)

	status := enums.OrderStatusConfirmed
	list, total, err := repo.ListByCustomer(context.Background(), customerID, ListFilter{Status: &status}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, confirmed.OrderNumber, list[0].OrderNumber)
}

func TestRepositoryListByFarmer(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	farmerID := uuid.New()
	now := time.Now().UTC()
	mine := createTestOrder(t, db, uuid.New(), farmerID, 1, enums.OrderStatusPending, now)
	createTestOrder(t, db, uuid.New(), uuid.New(), 2, enums.OrderStatusPending, now)

	list, total, err := repo.ListByFarmer(context.Background(), farmerID, ListFilter{}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, mine.OrderNumber, list[0].OrderNumber)
}

func TestRepositoryFindByID_preloadsTrackingInOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := createTestOrder(t, db, uuid.New(), uuid.New(), 1, enums.OrderStatusConfirmed, time.Now().UTC())
	actor := uuid.New()
	for i, status := range []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed} {
		entry := &models.OrderTracking{
			OrderID:   order.ID,
			Status:    status,
			UpdatedBy: actor,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		entry.ID = uuid.New()
		require.NoError(t, repo.AppendTracking(context.Background(), entry))
	}

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, found.Tracking, 2)
	assert.Equal(t, enums.OrderStatusPending, found.Tracking[0].Status)
	assert.Equal(t, enums.OrderStatusConfirmed, found.Tracking[1].Status)
	require.Len(t, found.Items, 1)
	require.NotNil(t, found.Payment)
}

func TestRepositoryFarmerHasItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	farmerID := uuid.New()
	order := createTestOrder(t, db, uuid.New(), farmerID, 1, enums.OrderStatusPending, time.Now().UTC())

	has, err := repo.FarmerHasItems(context.Background(), order.ID, farmerID)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.FarmerHasItems(context.Background(), order.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRepositoryFindStalePending(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	stale := createTestOrder(t, db, uuid.New(), uuid.New(), 1, enums.OrderStatusPending, now.Add(-48*time.Hour))
	createTestOrder(t, db, uuid.New(), uuid.New(), 2, enums.OrderStatusPending, now)
	createTestOrder(t, db, uuid.New(), uuid.New(), 3, enums.OrderStatusConfirmed, now.Add(-48*time.Hour))

	found, err := repo.FindStalePending(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.OrderNumber, found[0].OrderNumber)
}

func TestRepositoryUpdate(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := createTestOrder(t, db, uuid.New(), uuid.New(), 1, enums.OrderStatusPending, time.Now().UTC())
	require.NoError(t, repo.Update(context.Background(), order.ID, map[string]any{
		"status": enums.OrderStatusConfirmed,
	}))

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, found.Status)
}
