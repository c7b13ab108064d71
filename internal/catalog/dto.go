package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
)

// DiscountDTO is the API-facing shape of a product discount.
type DiscountDTO struct {
	ID        uuid.UUID          `json:"id"`
	Type      enums.DiscountType `json:"type"`
	Value     decimal.Decimal    `json:"value"`
	StartDate time.Time          `json:"startDate"`
	EndDate   time.Time          `json:"endDate"`
	IsActive  bool               `json:"isActive"`
}

// ProductDTO is the API-facing shape of a catalog listing.
type ProductDTO struct {
	ID             uuid.UUID         `json:"id"`
	FarmerID       uuid.UUID         `json:"farmerId"`
	CategoryID     uuid.UUID         `json:"categoryId"`
	Name           string            `json:"name"`
	Description    *string           `json:"description,omitempty"`
	Price          decimal.Decimal   `json:"price"`
	EffectivePrice decimal.Decimal   `json:"effectivePrice"`
	Unit           enums.ProductUnit `json:"unit"`
	Quantity       int               `json:"quantity"`
	MinOrderQty    int               `json:"minOrderQty"`
	Images         []string          `json:"images"`
	Tags           []string          `json:"tags"`
	IsOrganic      bool              `json:"isOrganic"`
	IsActive       bool              `json:"isActive"`
	HarvestDate    *time.Time        `json:"harvestDate,omitempty"`
	RatingAverage  decimal.Decimal   `json:"ratingAverage"`
	RatingCount    int               `json:"ratingCount"`
	ViewCount      int               `json:"viewCount"`
	SoldCount      int               `json:"soldCount"`
	Discounts      []DiscountDTO     `json:"discounts,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// CategoryDTO is the API-facing shape of a category.
type CategoryDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	SortOrder   int        `json:"sortOrder"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func ProductFromModel(p *models.Product, now time.Time) *ProductDTO {
	if p == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:             p.ID,
		FarmerID:       p.FarmerID,
		CategoryID:     p.CategoryID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		EffectivePrice: EffectivePrice(p, now),
		Unit:           p.Unit,
		Quantity:       p.Quantity,
		MinOrderQty:    p.MinOrderQty,
		Images:         append([]string(nil), p.Images...),
		Tags:           append([]string(nil), p.Tags...),
		IsOrganic:      p.IsOrganic,
		IsActive:       p.IsActive,
		HarvestDate:    p.HarvestDate,
		RatingAverage:  p.RatingAverage,
		RatingCount:    p.RatingCount,
		ViewCount:      p.ViewCount,
		SoldCount:      p.SoldCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for _, d := range p.Discounts {
		dto.Discounts = append(dto.Discounts, DiscountDTO{
			ID:        d.ID,
			Type:      d.Type,
			Value:     d.Value,
			StartDate: d.StartDate,
			EndDate:   d.EndDate,
			IsActive:  d.ActiveAt(now),
		})
	}
	return dto
}

func ProductsFromModels(products []models.Product, now time.Time) []*ProductDTO {
	out := make([]*ProductDTO, 0, len(products))
	for i := range products {
		out = append(out, ProductFromModel(&products[i], now))
	}
	return out
}

func CategoryFromModel(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		ParentID:    c.ParentID,
		SortOrder:   c.SortOrder,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func CategoriesFromModels(categories []models.Category) []*CategoryDTO {
	out := make([]*CategoryDTO, 0, len(categories))
	for i := range categories {
		out = append(out, CategoryFromModel(&categories[i]))
	}
	return out
}
