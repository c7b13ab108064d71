package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/enums"
)

// PromoCode is an admin-managed discount code with usage limits.
type PromoCode struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                 string           `gorm:"column:code;not null;uniqueIndex:promo_codes_code_key"`
	Description          *string          `gorm:"column:description"`
	Type                 enums.PromoType  `gorm:"column:type;type:promo_type;not null"`
	Value                decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MinOrderAmount       decimal.Decimal  `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscountAmount    *decimal.Decimal `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	UsageLimit           *int             `gorm:"column:usage_limit"`
	UsageCount           int              `gorm:"column:usage_count;not null;default:0"`
	PerUserLimit         int              `gorm:"column:per_user_limit;not null;default:1"`
	StartDate            time.Time        `gorm:"column:start_date;not null"`
	EndDate              time.Time        `gorm:"column:end_date;not null"`
	SpecificUsers        pq.StringArray   `gorm:"column:specific_users;type:text[];not null;default:ARRAY[]::text[]"`
	ApplicableCategories pq.StringArray   `gorm:"column:applicable_categories;type:text[];not null;default:ARRAY[]::text[]"`
	ApplicableProducts   pq.StringArray   `gorm:"column:applicable_products;type:text[];not null;default:ARRAY[]::text[]"`
	ApplicableFarmers    pq.StringArray   `gorm:"column:applicable_farmers;type:text[];not null;default:ARRAY[]::text[]"`
	IsActive             bool             `gorm:"column:is_active;not null;default:true"`
	CreatedBy            uuid.UUID        `gorm:"column:created_by;type:uuid;not null"`
	Usages               []PromoUsage     `gorm:"foreignKey:PromoCodeID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveAt reports whether the code is enabled and inside its validity window.
func (p PromoCode) ActiveAt(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// AvailableTo reports whether the user may use this code. A non-empty
// restriction list limits the code to the users it names.
func (p PromoCode) AvailableTo(userID uuid.UUID) bool {
	if len(p.SpecificUsers) == 0 {
		return true
	}
	id := userID.String()
	for _, allowed := range p.SpecificUsers {
		if allowed == id {
			return true
		}
	}
	return false
}

// PromoUsage records one application of a promo code by a user.
type PromoUsage struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PromoCodeID uuid.UUID       `gorm:"column:promo_code_id;type:uuid;not null;index:promo_usages_code_user_idx"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index:promo_usages_code_user_idx"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:promo_usages_order_id_key"`
	Discount    decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
