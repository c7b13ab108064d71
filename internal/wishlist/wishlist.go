package wishlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/catalog"
	dbpkg "github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

// EntryDTO is one saved product in a customer's wishlist.
type EntryDTO struct {
	ID        uuid.UUID           `json:"id"`
	ProductID uuid.UUID           `json:"productId"`
	Product   *catalog.ProductDTO `json:"product,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Service exposes wishlist operations.
type Service interface {
	List(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]EntryDTO, int64, error)
	Add(ctx context.Context, customerID, productID uuid.UUID) (*EntryDTO, error)
	Remove(ctx context.Context, customerID, productID uuid.UUID) error
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	db       *gorm.DB
	products productFinder
	now      func() time.Time
}

// NewService builds the wishlist service.
func NewService(db *gorm.DB, products productFinder) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{db: db, products: products, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]EntryDTO, int64, error) {
	if customerID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	params = params.Normalize()

	query := s.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("customer_id = ?", customerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count wishlist")
	}

	var items []models.WishlistItem
	err := query.
		Preload("Product").
		Preload("Product.Discounts").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}

	now := s.now()
	out := make([]EntryDTO, 0, len(items))
	for i := range items {
		entry := EntryDTO{
			ID:        items[i].ID,
			ProductID: items[i].ProductID,
			CreatedAt: items[i].CreatedAt,
		}
		if items[i].Product != nil {
			entry.Product = catalog.ProductFromModel(items[i].Product, now)
		}
		out = append(out, entry)
	}
	return out, total, nil
}

func (s *service) Add(ctx context.Context, customerID, productID uuid.UUID) (*EntryDTO, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	item := &models.WishlistItem{CustomerID: customerID, ProductID: productID}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "wishlist_customer_product_key") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already in wishlist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
	}

	return &EntryDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Product:   catalog.ProductFromModel(product, s.now()),
		CreatedAt: item.CreatedAt,
	}, nil
}

func (s *service) Remove(ctx context.Context, customerID, productID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	res := s.db.WithContext(ctx).
		Where("customer_id = ? AND product_id = ?", customerID, productID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "remove wishlist item")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "wishlist item not found")
	}
	return nil
}
