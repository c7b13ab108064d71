package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/types"
)

// Farmer is the seller profile attached to a user with the farmer role.
type Farmer struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:farmers_user_id_key"`
	FarmName         string          `gorm:"column:farm_name;not null"`
	Description      *string         `gorm:"column:description"`
	Specialties      pq.StringArray  `gorm:"column:specialties;type:text[];not null;default:ARRAY[]::text[]"`
	IsOrganic        bool            `gorm:"column:is_organic;not null;default:false"`
	IsVerified       bool            `gorm:"column:is_verified;not null;default:false"`
	VerifiedAt       *time.Time      `gorm:"column:verified_at"`
	FarmLocation     *types.Address  `gorm:"column:farm_location;type:jsonb"`
	DeliveryRadiusKM int             `gorm:"column:delivery_radius_km;not null;default:50"`
	RatingAverage    decimal.Decimal `gorm:"column:rating_average;type:numeric(3,2);not null;default:0"`
	RatingCount      int             `gorm:"column:rating_count;not null;default:0"`
	TotalSales       decimal.Decimal `gorm:"column:total_sales;type:numeric(14,2);not null;default:0"`
	SocialMedia      *types.JSONMap  `gorm:"column:social_media;type:jsonb;serializer:json"`
	Products         []Product       `gorm:"foreignKey:FarmerID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
