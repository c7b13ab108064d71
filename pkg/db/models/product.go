package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/enums"
)

// Product represents a farmer's catalog listing.
type Product struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID      uuid.UUID         `gorm:"column:farmer_id;type:uuid;not null;index"`
	CategoryID    uuid.UUID         `gorm:"column:category_id;type:uuid;not null;index"`
	Name          string            `gorm:"column:name;not null"`
	Description   *string           `gorm:"column:description"`
	Price         decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	Unit          enums.ProductUnit `gorm:"column:unit;type:product_unit;not null"`
	Quantity      int               `gorm:"column:quantity;not null;default:0"`
	MinOrderQty   int               `gorm:"column:min_order_qty;not null;default:1"`
	Images        pq.StringArray    `gorm:"column:images;type:text[];not null;default:ARRAY[]::text[]"`
	Tags          pq.StringArray    `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	IsOrganic     bool              `gorm:"column:is_organic;not null;default:false"`
	IsActive      bool              `gorm:"column:is_active;not null;default:true"`
	HarvestDate   *time.Time        `gorm:"column:harvest_date"`
	RatingAverage decimal.Decimal   `gorm:"column:rating_average;type:numeric(3,2);not null;default:0"`
	RatingCount   int               `gorm:"column:rating_count;not null;default:0"`
	ViewCount     int               `gorm:"column:view_count;not null;default:0"`
	SoldCount     int               `gorm:"column:sold_count;not null;default:0"`
	Discounts     []ProductDiscount `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductDiscount is a time-bounded price adjustment attached to a product.
type ProductDiscount struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index:product_discounts_product_id_idx"`
	Type      enums.DiscountType `gorm:"column:type;type:discount_type;not null"`
	Value     decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	StartDate time.Time          `gorm:"column:start_date;not null"`
	EndDate   time.Time          `gorm:"column:end_date;not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveAt reports whether the discount window covers the given instant.
func (d ProductDiscount) ActiveAt(now time.Time) bool {
	return !now.Before(d.StartDate) && !now.After(d.EndDate)
}
