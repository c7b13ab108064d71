package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// UserDTO is the API-facing shape of an account.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	Phone       *string        `json:"phone,omitempty"`
	Role        enums.UserRole `json:"role"`
	Address     *types.Address `json:"address,omitempty"`
	AvatarURL   *string        `json:"avatarUrl,omitempty"`
	IsActive    bool           `json:"isActive"`
	IsVerified  bool           `json:"isVerified"`
	FarmerID    *uuid.UUID     `json:"farmerId,omitempty"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	dto := &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Role:        u.Role,
		Address:     u.Address,
		AvatarURL:   u.AvatarURL,
		IsActive:    u.IsActive,
		IsVerified:  u.IsEmailVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if u.Farmer != nil {
		id := u.Farmer.ID
		dto.FarmerID = &id
	}
	return dto
}
