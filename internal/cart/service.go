package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/catalog"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

// ItemDTO is one cart line priced at the current instant.
type ItemDTO struct {
	ID             uuid.UUID           `json:"id"`
	ProductID      uuid.UUID           `json:"productId"`
	Quantity       int                 `json:"quantity"`
	UnitPrice      decimal.Decimal     `json:"unitPrice"`
	LineTotal      decimal.Decimal     `json:"lineTotal"`
	Product        *catalog.ProductDTO `json:"product,omitempty"`
	IsAvailable    bool                `json:"isAvailable"`
	AvailableStock int                 `json:"availableStock"`
}

// CartDTO is the API-facing cart with a freshly computed subtotal.
type CartDTO struct {
	ID       uuid.UUID       `json:"id"`
	Items    []ItemDTO       `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Service exposes cart operations.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error)
	UpdateItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo     Repository
	products productFinder
	now      func() time.Time
}

// NewService builds the cart service.
func NewService(repo Repository, products productFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, products: products, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*CartDTO, error) {
	cart, err := s.loadCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.toDTO(cart), nil
}

func (s *service) AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.availableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity < product.MinOrderQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity below minimum order").
			WithDetails(map[string]any{"minOrderQty": product.MinOrderQty})
	}

	cart, err := s.repo.FindOrCreateByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, productID)
	switch {
	case err == nil:
		total := existing.Quantity + quantity
		if total > product.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{"availableStock": product.Quantity})
		}
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, total); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if quantity > product.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{"availableStock": product.Quantity})
		}
		item := &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	return s.Get(ctx, customerID)
}

func (s *service) UpdateItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, customerID, productID)
	}

	product, err := s.availableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity < product.MinOrderQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity below minimum order").
			WithDetails(map[string]any{"minOrderQty": product.MinOrderQty})
	}
	if quantity > product.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
			WithDetails(map[string]any{"availableStock": product.Quantity})
	}

	cart, err := s.loadCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}

	return s.Get(ctx, customerID)
}

func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*CartDTO, error) {
	cart, err := s.loadCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.Get(ctx, customerID)
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) error {
	cart, err := s.loadCart(ctx, customerID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) loadCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := s.repo.FindOrCreateByCustomer(ctx, customerID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	// FindOrCreate does not preload; re-read with items attached.
	full, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return full, nil
}

func (s *service) availableProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available")
	}
	return product, nil
}

func (s *service) toDTO(cart *models.Cart) *CartDTO {
	now := s.now()
	dto := &CartDTO{
		ID:       cart.ID,
		Items:    make([]ItemDTO, 0, len(cart.Items)),
		Subtotal: decimal.Zero,
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		line := ItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if item.Product != nil {
			unit := catalog.EffectivePrice(item.Product, now)
			line.UnitPrice = unit
			line.LineTotal = unit.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
			line.Product = catalog.ProductFromModel(item.Product, now)
			line.IsAvailable = item.Product.IsActive && item.Product.Quantity >= item.Quantity
			line.AvailableStock = item.Product.Quantity
			if line.IsAvailable {
				dto.Subtotal = dto.Subtotal.Add(line.LineTotal)
			}
		}
		dto.Items = append(dto.Items, line)
	}
	dto.Subtotal = dto.Subtotal.Round(2)
	return dto
}
