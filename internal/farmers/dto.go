package farmers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// FarmerDTO is the API-facing shape of a farmer profile.
type FarmerDTO struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"userId"`
	FarmName         string          `json:"farmName"`
	Description      *string         `json:"description,omitempty"`
	Specialties      []string        `json:"specialties"`
	IsOrganic        bool            `json:"isOrganic"`
	IsVerified       bool            `json:"isVerified"`
	VerifiedAt       *time.Time      `json:"verifiedAt,omitempty"`
	FarmLocation     *types.Address  `json:"farmLocation,omitempty"`
	DeliveryRadiusKM int             `json:"deliveryRadiusKm"`
	RatingAverage    decimal.Decimal `json:"ratingAverage"`
	RatingCount      int             `json:"ratingCount"`
	TotalSales       decimal.Decimal `json:"totalSales"`
	SocialMedia      *types.JSONMap  `json:"socialMedia,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func FromModel(f *models.Farmer) *FarmerDTO {
	if f == nil {
		return nil
	}
	return &FarmerDTO{
		ID:               f.ID,
		UserID:           f.UserID,
		FarmName:         f.FarmName,
		Description:      f.Description,
		Specialties:      append([]string(nil), f.Specialties...),
		IsOrganic:        f.IsOrganic,
		IsVerified:       f.IsVerified,
		VerifiedAt:       f.VerifiedAt,
		FarmLocation:     f.FarmLocation,
		DeliveryRadiusKM: f.DeliveryRadiusKM,
		RatingAverage:    f.RatingAverage,
		RatingCount:      f.RatingCount,
		TotalSales:       f.TotalSales,
		SocialMedia:      f.SocialMedia,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

func FromModels(farmers []models.Farmer) []*FarmerDTO {
	out := make([]*FarmerDTO, 0, len(farmers))
	for i := range farmers {
		out = append(out, FromModel(&farmers[i]))
	}
	return out
}
