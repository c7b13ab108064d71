package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

type stubProductRepo struct {
	product *models.Product

	created     *models.Product
	updates     map[string]any
	deactivated []uuid.UUID
	views       int
	discounts   []*models.ProductDiscount
	discountDel []uuid.UUID
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubProductRepo) Create(_ context.Context, product *models.Product) (*models.Product, error) {
	product.ID = uuid.New()
	s.created = product
	return product, nil
}

func (s *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.product
	return &clone, nil
}

func (s *stubProductRepo) FindByIDs(context.Context, []uuid.UUID) ([]models.Product, error) {
	panic("not implemented")
}

func (s *stubProductRepo) List(context.Context, ProductFilter, pagination.Params) ([]models.Product, int64, error) {
	panic("not implemented")
}

func (s *stubProductRepo) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

func (s *stubProductRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

func (s *stubProductRepo) IncrementViewCount(_ context.Context, id uuid.UUID) error {
	s.views++
	return nil
}

func (s *stubProductRepo) FindLowStock(context.Context, int) ([]models.Product, error) {
	panic("not implemented")
}

func (s *stubProductRepo) AddDiscount(_ context.Context, discount *models.ProductDiscount) error {
	s.discounts = append(s.discounts, discount)
	s.product.Discounts = append(s.product.Discounts, *discount)
	return nil
}

func (s *stubProductRepo) DeleteDiscounts(_ context.Context, productID uuid.UUID) error {
	s.discountDel = append(s.discountDel, productID)
	s.product.Discounts = nil
	return nil
}

type stubCategoryFinder struct {
	category *models.Category
}

func (s *stubCategoryFinder) FindByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	if s.category == nil || s.category.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.category, nil
}

type catalogFixture struct {
	service    Service
	repo       *stubProductRepo
	categories *stubCategoryFinder
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	repo := &stubProductRepo{}
	categories := &stubCategoryFinder{category: &models.Category{ID: uuid.New(), Name: "Vegetables"}}
	svc, err := NewService(repo, categories)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &catalogFixture{service: svc, repo: repo, categories: categories}
}

func (f *catalogFixture) seedProduct(farmerID uuid.UUID, price string) *models.Product {
	f.repo.product = &models.Product{
		ID:          uuid.New(),
		FarmerID:    farmerID,
		CategoryID:  f.categories.category.ID,
		Name:        "Heirloom Tomatoes",
		Price:       decimal.RequireFromString(price),
		Unit:        enums.ProductUnitKilogram,
		Quantity:    40,
		MinOrderQty: 1,
		IsActive:    true,
	}
	return f.repo.product
}

func TestCreateProduct(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()

	dto, err := f.service.Create(context.Background(), CreateProductInput{
		FarmerID:   farmerID,
		CategoryID: f.categories.category.ID,
		Name:       "  Fresh Basil  ",
		Price:      decimal.RequireFromString("89.505"),
		Unit:       enums.ProductUnitBunch,
		Quantity:   15,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if dto.Name != "Fresh Basil" {
		t.Fatalf("expected trimmed name, got %q", dto.Name)
	}
	if !dto.Price.Equal(decimal.RequireFromString("89.51")) {
		t.Fatalf("expected rounded price 89.51, got %s", dto.Price)
	}
	if dto.MinOrderQty != 1 {
		t.Fatalf("expected min order quantity default 1, got %d", dto.MinOrderQty)
	}
	if !f.repo.created.IsActive {
		t.Fatal("new products must be active")
	}
}

func TestCreateProductRejectsUnknownCategory(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.service.Create(context.Background(), CreateProductInput{
		FarmerID:   uuid.New(),
		CategoryID: uuid.New(),
		Name:       "Fresh Basil",
		Price:      decimal.RequireFromString("50"),
		Unit:       enums.ProductUnitBunch,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateProductRejectsNonPositivePrice(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.service.Create(context.Background(), CreateProductInput{
		FarmerID:   uuid.New(),
		CategoryID: f.categories.category.ID,
		Name:       "Fresh Basil",
		Price:      decimal.Zero,
		Unit:       enums.ProductUnitBunch,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetCountsView(t *testing.T) {
	f := newCatalogFixture(t)
	product := f.seedProduct(uuid.New(), "120.00")

	dto, err := f.service.Get(context.Background(), product.ID, true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.repo.views != 1 {
		t.Fatalf("expected one view increment, got %d", f.repo.views)
	}
	if dto.ViewCount != product.ViewCount+1 {
		t.Fatalf("expected view count %d, got %d", product.ViewCount+1, dto.ViewCount)
	}
}

func TestGetUnknownProduct(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.service.Get(context.Background(), uuid.New(), false)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateForbidsForeignFarmer(t *testing.T) {
	f := newCatalogFixture(t)
	product := f.seedProduct(uuid.New(), "120.00")

	name := "Renamed"
	_, err := f.service.Update(context.Background(), product.ID, uuid.New(), UpdateProductInput{Name: &name})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.repo.updates != nil {
		t.Fatal("no update must be written")
	}
}

func TestUpdateAppliesChangedFields(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "120.00")

	price := decimal.RequireFromString("135.555")
	quantity := 8
	if _, err := f.service.Update(context.Background(), product.ID, farmerID, UpdateProductInput{
		Price:    &price,
		Quantity: &quantity,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := f.repo.updates["price"].(decimal.Decimal); !got.Equal(decimal.RequireFromString("135.56")) {
		t.Fatalf("expected rounded price update, got %s", got)
	}
	if f.repo.updates["quantity"] != 8 {
		t.Fatalf("expected quantity update, got %v", f.repo.updates["quantity"])
	}
	if _, ok := f.repo.updates["name"]; ok {
		t.Fatal("untouched fields must not be written")
	}
}

func TestDeleteDeactivatesProduct(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "120.00")

	if err := f.service.Delete(context.Background(), product.ID, farmerID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.repo.deactivated) != 1 || f.repo.deactivated[0] != product.ID {
		t.Fatalf("expected deactivation of %s, got %v", product.ID, f.repo.deactivated)
	}
}

func TestAddDiscountStoresWindow(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "200.00")
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(24 * time.Hour)

	dto, err := f.service.AddDiscount(context.Background(), product.ID, farmerID, DiscountInput{
		Type:      enums.DiscountTypePercentage,
		Value:     decimal.RequireFromString("25"),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		t.Fatalf("AddDiscount: %v", err)
	}
	if len(f.repo.discounts) != 1 || f.repo.discounts[0].ProductID != product.ID {
		t.Fatal("discount must be stored for the product")
	}
	if !dto.EffectivePrice.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("expected effective price 150, got %s", dto.EffectivePrice)
	}
}

func TestAddDiscountKeepsExistingEntries(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "200.00")
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(24 * time.Hour)

	if _, err := f.service.AddDiscount(context.Background(), product.ID, farmerID, DiscountInput{
		Type:      enums.DiscountTypePercentage,
		Value:     decimal.RequireFromString("10"),
		StartDate: start,
		EndDate:   end,
	}); err != nil {
		t.Fatalf("AddDiscount: %v", err)
	}
	dto, err := f.service.AddDiscount(context.Background(), product.ID, farmerID, DiscountInput{
		Type:      enums.DiscountTypePercentage,
		Value:     decimal.RequireFromString("25"),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		t.Fatalf("AddDiscount: %v", err)
	}
	if len(f.repo.discounts) != 2 {
		t.Fatalf("expected both discounts kept, got %d", len(f.repo.discounts))
	}
	if len(dto.Discounts) != 2 {
		t.Fatalf("expected both discounts in the response, got %d", len(dto.Discounts))
	}
	if !dto.EffectivePrice.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("expected the deeper discount to win, got %s", dto.EffectivePrice)
	}
}

func TestAddDiscountRejectsPercentageOverHundred(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "200.00")

	_, err := f.service.AddDiscount(context.Background(), product.ID, farmerID, DiscountInput{
		Type:      enums.DiscountTypePercentage,
		Value:     decimal.RequireFromString("120"),
		StartDate: time.Now(),
		EndDate:   time.Now().Add(time.Hour),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddDiscountRejectsFixedAbovePrice(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "200.00")

	_, err := f.service.AddDiscount(context.Background(), product.ID, farmerID, DiscountInput{
		Type:      enums.DiscountTypeFixed,
		Value:     decimal.RequireFromString("250"),
		StartDate: time.Now(),
		EndDate:   time.Now().Add(time.Hour),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddDiscountRejectsInvertedWindow(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "200.00")

	_, err := f.service.AddDiscount(context.Background(), product.ID, farmerID, DiscountInput{
		Type:      enums.DiscountTypePercentage,
		Value:     decimal.RequireFromString("10"),
		StartDate: time.Now().Add(time.Hour),
		EndDate:   time.Now(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveDiscounts(t *testing.T) {
	f := newCatalogFixture(t)
	farmerID := uuid.New()
	product := f.seedProduct(farmerID, "200.00")
	product.Discounts = []models.ProductDiscount{{
		Type:      enums.DiscountTypeFixed,
		Value:     decimal.RequireFromString("20"),
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(time.Hour),
	}}

	dto, err := f.service.RemoveDiscounts(context.Background(), product.ID, farmerID)
	if err != nil {
		t.Fatalf("RemoveDiscounts: %v", err)
	}
	if len(f.repo.discountDel) != 1 || f.repo.discountDel[0] != product.ID {
		t.Fatalf("expected discount deletion for %s, got %v", product.ID, f.repo.discountDel)
	}
	if len(dto.Discounts) != 0 {
		t.Fatal("discounts must be gone from the response")
	}
}
