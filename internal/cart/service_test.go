package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

// stubCartRepo keeps one cart per customer in memory so the service
// sees its own writes on the re-read after each mutation.
type stubCartRepo struct {
	cartID     uuid.UUID
	customerID uuid.UUID
	items      []*models.CartItem
	products   map[uuid.UUID]*models.Product
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{
		cartID:   uuid.New(),
		products: map[uuid.UUID]*models.Product{},
	}
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) FindOrCreateByCustomer(_ context.Context, customerID uuid.UUID) (*models.Cart, error) {
	s.customerID = customerID
	return &models.Cart{ID: s.cartID, CustomerID: customerID}, nil
}

func (s *stubCartRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if customerID != s.customerID {
		return nil, gorm.ErrRecordNotFound
	}
	cart := &models.Cart{ID: s.cartID, CustomerID: customerID}
	for _, item := range s.items {
		line := *item
		line.Product = s.products[item.ProductID]
		cart.Items = append(cart.Items, line)
	}
	return cart, nil
}

func (s *stubCartRepo) FindItem(_ context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	for _, item := range s.items {
		if item.CartID == cartID && item.ProductID == productID {
			clone := *item
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) CreateItem(_ context.Context, item *models.CartItem) error {
	item.ID = uuid.New()
	s.items = append(s.items, item)
	return nil
}

func (s *stubCartRepo) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	for _, item := range s.items {
		if item.ID == itemID {
			item.Quantity = quantity
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubCartRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	for i, item := range s.items {
		if item.ID == itemID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *stubCartRepo) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	s.items = nil
	return nil
}

type stubCartProducts struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubCartProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

type cartFixture struct {
	service Service
	repo    *stubCartRepo
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	repo := newStubCartRepo()
	svc, err := NewService(repo, &stubCartProducts{products: repo.products})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &cartFixture{service: svc, repo: repo}
}

func (f *cartFixture) seedCartProduct(price string, stock int) *models.Product {
	product := &models.Product{
		ID:          uuid.New(),
		FarmerID:    uuid.New(),
		Name:        "Goat Cheese",
		Price:       decimal.RequireFromString(price),
		Unit:        enums.ProductUnitPiece,
		Quantity:    stock,
		MinOrderQty: 1,
		IsActive:    true,
	}
	f.repo.products[product.ID] = product
	return product
}

func TestAddItemComputesSubtotal(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("149.50", 10)

	dto, err := f.service.AddItem(context.Background(), customerID, product.ID, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(dto.Items) != 1 {
		t.Fatalf("expected one cart line, got %d", len(dto.Items))
	}
	if !dto.Items[0].LineTotal.Equal(decimal.RequireFromString("299")) {
		t.Fatalf("expected line total 299, got %s", dto.Items[0].LineTotal)
	}
	if !dto.Subtotal.Equal(decimal.RequireFromString("299")) {
		t.Fatalf("expected subtotal 299, got %s", dto.Subtotal)
	}
}

func TestAddItemMergesExistingLine(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("100.00", 10)

	if _, err := f.service.AddItem(context.Background(), customerID, product.ID, 2); err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	dto, err := f.service.AddItem(context.Background(), customerID, product.ID, 3)
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}
	if len(dto.Items) != 1 || dto.Items[0].Quantity != 5 {
		t.Fatalf("expected one merged line of 5, got %+v", dto.Items)
	}
}

func TestAddItemRejectsOverStock(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("100.00", 4)

	if _, err := f.service.AddItem(context.Background(), customerID, product.ID, 3); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	_, err := f.service.AddItem(context.Background(), customerID, product.ID, 2)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}
}

func TestAddItemRejectsBelowMinOrder(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("100.00", 20)
	product.MinOrderQty = 5

	_, err := f.service.AddItem(context.Background(), customerID, product.ID, 2)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("100.00", 20)
	product.IsActive = false

	_, err := f.service.AddItem(context.Background(), customerID, product.ID, 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeProductUnavailable {
		t.Fatalf("expected product unavailable, got %v", err)
	}
}

func TestUpdateItemZeroQuantityRemovesLine(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("100.00", 10)

	if _, err := f.service.AddItem(context.Background(), customerID, product.ID, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	dto, err := f.service.UpdateItem(context.Background(), customerID, product.ID, 0)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if len(dto.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(dto.Items))
	}
}

func TestUpdateItemChangesQuantity(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("50.00", 10)

	if _, err := f.service.AddItem(context.Background(), customerID, product.ID, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	dto, err := f.service.UpdateItem(context.Background(), customerID, product.ID, 7)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if dto.Items[0].Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", dto.Items[0].Quantity)
	}
	if !dto.Subtotal.Equal(decimal.RequireFromString("350")) {
		t.Fatalf("expected subtotal 350, got %s", dto.Subtotal)
	}
}

func TestUpdateItemUnknownLine(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("50.00", 10)

	_, err := f.service.UpdateItem(context.Background(), customerID, product.ID, 3)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveItem(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	first := f.seedCartProduct("50.00", 10)
	second := f.seedCartProduct("80.00", 10)

	if _, err := f.service.AddItem(context.Background(), customerID, first.ID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.service.AddItem(context.Background(), customerID, second.ID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	dto, err := f.service.RemoveItem(context.Background(), customerID, first.ID)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(dto.Items) != 1 || dto.Items[0].ProductID != second.ID {
		t.Fatalf("expected only second product to remain, got %+v", dto.Items)
	}
}

func TestClearEmptiesCart(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	product := f.seedCartProduct("50.00", 10)

	if _, err := f.service.AddItem(context.Background(), customerID, product.ID, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := f.service.Clear(context.Background(), customerID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	dto, err := f.service.Get(context.Background(), customerID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(dto.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(dto.Items))
	}
}

func TestSubtotalSkipsUnavailableLines(t *testing.T) {
	f := newCartFixture(t)
	customerID := uuid.New()
	kept := f.seedCartProduct("100.00", 10)
	dropped := f.seedCartProduct("40.00", 10)

	if _, err := f.service.AddItem(context.Background(), customerID, kept.ID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.service.AddItem(context.Background(), customerID, dropped.ID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	dropped.IsActive = false

	dto, err := f.service.Get(context.Background(), customerID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !dto.Subtotal.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected subtotal 100 without the inactive line, got %s", dto.Subtotal)
	}
	for _, line := range dto.Items {
		if line.ProductID == dropped.ID && line.IsAvailable {
			t.Fatal("inactive product must be flagged unavailable")
		}
	}
}

func TestGetRequiresIdentity(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.service.Get(context.Background(), uuid.Nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
