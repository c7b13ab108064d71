package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Review is a customer's rating of a purchased product.
type Review struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID      `gorm:"column:product_id;type:uuid;not null;uniqueIndex:reviews_customer_product_order_key,priority:2"`
	CustomerID    uuid.UUID      `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:reviews_customer_product_order_key,priority:1"`
	OrderID       uuid.UUID      `gorm:"column:order_id;type:uuid;not null;uniqueIndex:reviews_customer_product_order_key,priority:3"`
	FarmerID      uuid.UUID      `gorm:"column:farmer_id;type:uuid;not null;index"`
	Rating        int            `gorm:"column:rating;not null"`
	Comment       *string        `gorm:"column:comment"`
	Images        pq.StringArray `gorm:"column:images;type:text[];not null;default:ARRAY[]::text[]"`
	FarmerReply   *string        `gorm:"column:farmer_reply"`
	RepliedAt     *time.Time     `gorm:"column:replied_at"`
	IsVerified    bool           `gorm:"column:is_verified;not null;default:true"`
	HelpfulCount  int            `gorm:"column:helpful_count;not null;default:0"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
