package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// User represents a registered account: customer, farmer, or admin.
type User struct {
	ID                     uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email                  string         `gorm:"column:email;not null;uniqueIndex:users_email_key"`
	PasswordHash           string         `gorm:"column:password_hash;not null"`
	FirstName              string         `gorm:"column:first_name;not null"`
	LastName               string         `gorm:"column:last_name;not null"`
	Phone                  *string        `gorm:"column:phone"`
	Role                   enums.UserRole `gorm:"column:role;type:user_role;not null;default:'customer'"`
	Address                *types.Address `gorm:"column:address;type:jsonb"`
	AvatarURL              *string        `gorm:"column:avatar_url"`
	IsActive               bool           `gorm:"column:is_active;not null;default:true"`
	IsEmailVerified        bool           `gorm:"column:is_email_verified;not null;default:false"`
	VerificationToken      *string        `gorm:"column:verification_token;index:users_verification_token_idx"`
	ResetPasswordToken     *string        `gorm:"column:reset_password_token;index:users_reset_password_token_idx"`
	ResetPasswordExpiresAt *time.Time     `gorm:"column:reset_password_expires_at"`
	LastLoginAt            *time.Time     `gorm:"column:last_login_at"`
	Farmer                 *Farmer        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
