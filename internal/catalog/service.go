package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

// CreateProductInput captures a new catalog listing.
type CreateProductInput struct {
	FarmerID    uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description *string
	Price       decimal.Decimal
	Unit        enums.ProductUnit
	Quantity    int
	MinOrderQty int
	Images      []string
	Tags        []string
	IsOrganic   bool
	HarvestDate *time.Time
}

// UpdateProductInput carries the mutable product fields. Nil means leave unchanged.
type UpdateProductInput struct {
	CategoryID  *uuid.UUID
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Unit        *enums.ProductUnit
	Quantity    *int
	MinOrderQty *int
	Images      []string
	Tags        []string
	IsOrganic   *bool
	IsActive    *bool
	HarvestDate *time.Time
}

// DiscountInput defines a time-bounded price adjustment.
type DiscountInput struct {
	Type      enums.DiscountType
	Value     decimal.Decimal
	StartDate time.Time
	EndDate   time.Time
}

// Service exposes catalog operations for products.
type Service interface {
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID, countView bool) (*ProductDTO, error)
	List(ctx context.Context, filter ProductFilter, params pagination.Params) ([]*ProductDTO, int64, error)
	Update(ctx context.Context, productID, farmerID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, productID, farmerID uuid.UUID) error
	AddDiscount(ctx context.Context, productID, farmerID uuid.UUID, input DiscountInput) (*ProductDTO, error)
	RemoveDiscounts(ctx context.Context, productID, farmerID uuid.UUID) (*ProductDTO, error)
}

type categoryFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

type service struct {
	repo       Repository
	categories categoryFinder
	now        func() time.Time
}

// NewService builds the catalog service.
func NewService(repo Repository, categories categoryFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{repo: repo, categories: categories, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if input.FarmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer profile required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product unit")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	minQty := input.MinOrderQty
	if minQty <= 0 {
		minQty = 1
	}

	if _, err := s.categories.FindByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	product := &models.Product{
		FarmerID:    input.FarmerID,
		CategoryID:  input.CategoryID,
		Name:        name,
		Description: input.Description,
		Price:       input.Price.Round(2),
		Unit:        input.Unit,
		Quantity:    input.Quantity,
		MinOrderQty: minQty,
		Images:      pq.StringArray(input.Images),
		Tags:        pq.StringArray(input.Tags),
		IsOrganic:   input.IsOrganic,
		IsActive:    true,
		HarvestDate: input.HarvestDate,
	}
	product, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return ProductFromModel(product, s.now()), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, countView bool) (*ProductDTO, error) {
	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if countView {
		if err := s.repo.IncrementViewCount(ctx, id); err == nil {
			product.ViewCount++
		}
	}
	return ProductFromModel(product, s.now()), nil
}

func (s *service) List(ctx context.Context, filter ProductFilter, params pagination.Params) ([]*ProductDTO, int64, error) {
	params = params.Normalize()
	products, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return ProductsFromModels(products, s.now()), total, nil
}

func (s *service) Update(ctx context.Context, productID, farmerID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.ownedProduct(ctx, productID, farmerID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		updates["category_id"] = *input.CategoryID
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		updates["price"] = input.Price.Round(2)
	}
	if input.Unit != nil {
		if !input.Unit.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product unit")
		}
		updates["unit"] = *input.Unit
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
		}
		updates["quantity"] = *input.Quantity
	}
	if input.MinOrderQty != nil {
		if *input.MinOrderQty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum order quantity must be positive")
		}
		updates["min_order_qty"] = *input.MinOrderQty
	}
	if input.Images != nil {
		updates["images"] = pq.StringArray(input.Images)
	}
	if input.Tags != nil {
		updates["tags"] = pq.StringArray(input.Tags)
	}
	if input.IsOrganic != nil {
		updates["is_organic"] = *input.IsOrganic
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.HarvestDate != nil {
		updates["harvest_date"] = *input.HarvestDate
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, product.ID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
	}

	return s.Get(ctx, product.ID, false)
}

func (s *service) Delete(ctx context.Context, productID, farmerID uuid.UUID) error {
	product, err := s.ownedProduct(ctx, productID, farmerID)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, product.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}

func (s *service) AddDiscount(ctx context.Context, productID, farmerID uuid.UUID, input DiscountInput) (*ProductDTO, error) {
	product, err := s.ownedProduct(ctx, productID, farmerID)
	if err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if input.Value.IsNegative() || input.Value.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if input.Type == enums.DiscountTypePercentage && input.Value.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if input.Type == enums.DiscountTypeFixed && input.Value.GreaterThan(product.Price) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fixed discount cannot exceed product price")
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount end date must follow start date")
	}

	discount := &models.ProductDiscount{
		ProductID: product.ID,
		Type:      input.Type,
		Value:     input.Value.Round(2),
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	}
	if err := s.repo.AddDiscount(ctx, discount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save discount")
	}
	return s.Get(ctx, product.ID, false)
}

func (s *service) RemoveDiscounts(ctx context.Context, productID, farmerID uuid.UUID) (*ProductDTO, error) {
	product, err := s.ownedProduct(ctx, productID, farmerID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteDiscounts(ctx, product.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete discount")
	}
	return s.Get(ctx, product.ID, false)
}

func (s *service) findProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) ownedProduct(ctx context.Context, productID, farmerID uuid.UUID) (*models.Product, error) {
	if farmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer profile required")
	}
	product, err := s.findProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.FarmerID != farmerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to farmer")
	}
	return product, nil
}
