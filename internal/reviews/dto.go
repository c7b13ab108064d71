package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
)

// ReviewDTO is a review rendered for clients.
type ReviewDTO struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"productId"`
	CustomerID   uuid.UUID  `json:"customerId"`
	FarmerID     uuid.UUID  `json:"farmerId"`
	Rating       int        `json:"rating"`
	Comment      *string    `json:"comment,omitempty"`
	Images       []string   `json:"images"`
	FarmerReply  *string    `json:"farmerReply,omitempty"`
	RepliedAt    *time.Time `json:"repliedAt,omitempty"`
	IsVerified   bool       `json:"isVerified"`
	HelpfulCount int        `json:"helpfulCount"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// FromModel maps a review row onto its DTO.
func FromModel(r *models.Review) *ReviewDTO {
	return &ReviewDTO{
		ID:           r.ID,
		ProductID:    r.ProductID,
		CustomerID:   r.CustomerID,
		FarmerID:     r.FarmerID,
		Rating:       r.Rating,
		Comment:      r.Comment,
		Images:       []string(r.Images),
		FarmerReply:  r.FarmerReply,
		RepliedAt:    r.RepliedAt,
		IsVerified:   r.IsVerified,
		HelpfulCount: r.HelpfulCount,
		CreatedAt:    r.CreatedAt,
	}
}

// FromModels maps a page of review rows onto DTOs.
func FromModels(rows []models.Review) []*ReviewDTO {
	dtos := make([]*ReviewDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, FromModel(&rows[i]))
	}
	return dtos
}
