package farmers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// ApplyInput captures a farmer profile application.
type ApplyInput struct {
	UserID           uuid.UUID
	FarmName         string
	Description      *string
	Specialties      []string
	IsOrganic        bool
	FarmLocation     *types.Address
	DeliveryRadiusKM int
	SocialMedia      *types.JSONMap
}

// UpdateInput carries the mutable profile fields. Nil means leave unchanged.
type UpdateInput struct {
	FarmName         *string
	Description      *string
	Specialties      []string
	IsOrganic        *bool
	FarmLocation     *types.Address
	DeliveryRadiusKM *int
	SocialMedia      *types.JSONMap
}

// FarmerVerifiedEvent is emitted when an admin verifies a farmer profile.
type FarmerVerifiedEvent struct {
	FarmerID uuid.UUID `json:"farmerId"`
	UserID   uuid.UUID `json:"userId"`
	FarmName string    `json:"farmName"`
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes farmer profile operations.
type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*FarmerDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*FarmerDTO, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*FarmerDTO, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]*FarmerDTO, int64, error)
	Update(ctx context.Context, farmerID uuid.UUID, input UpdateInput) (*FarmerDTO, error)
	Verify(ctx context.Context, farmerID, adminID uuid.UUID) (*FarmerDTO, error)
}

type service struct {
	db     *db.Client
	repo   Repository
	outbox outboxPublisher
}

// NewService builds the farmers service.
func NewService(dbClient *db.Client, repo Repository, outboxSvc outboxPublisher) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("database client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("farmers repository required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{db: dbClient, repo: repo, outbox: outboxSvc}, nil
}

func (s *service) Apply(ctx context.Context, input ApplyInput) (*FarmerDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.FarmName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm name is required")
	}
	radius := input.DeliveryRadiusKM
	if radius <= 0 {
		radius = 50
	}
	if input.FarmLocation != nil {
		if err := input.FarmLocation.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farm location")
		}
	}

	var created *models.Farmer
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByUserID(ctx, input.UserID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "farmer profile already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check farmer profile")
		}

		farmer := &models.Farmer{
			UserID:           input.UserID,
			FarmName:         name,
			Description:      input.Description,
			Specialties:      pq.StringArray(input.Specialties),
			IsOrganic:        input.IsOrganic,
			FarmLocation:     input.FarmLocation,
			DeliveryRadiusKM: radius,
			SocialMedia:      input.SocialMedia,
		}
		farmer, err := repo.Create(ctx, farmer)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create farmer")
		}

		err = tx.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", input.UserID).
			Update("role", enums.UserRoleFarmer).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote user role")
		}

		created = farmer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*FarmerDTO, error) {
	farmer, err := s.findFarmer(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(farmer), nil
}

func (s *service) GetByUser(ctx context.Context, userID uuid.UUID) (*FarmerDTO, error) {
	farmer, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farmer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer")
	}
	return FromModel(farmer), nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]*FarmerDTO, int64, error) {
	params = params.Normalize()
	farmers, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farmers")
	}
	return FromModels(farmers), total, nil
}

func (s *service) Update(ctx context.Context, farmerID uuid.UUID, input UpdateInput) (*FarmerDTO, error) {
	if _, err := s.findFarmer(ctx, farmerID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.FarmName != nil {
		name := strings.TrimSpace(*input.FarmName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm name cannot be empty")
		}
		updates["farm_name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Specialties != nil {
		updates["specialties"] = pq.StringArray(input.Specialties)
	}
	if input.IsOrganic != nil {
		updates["is_organic"] = *input.IsOrganic
	}
	if input.FarmLocation != nil {
		if err := input.FarmLocation.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farm location")
		}
		updates["farm_location"] = input.FarmLocation
	}
	if input.DeliveryRadiusKM != nil {
		if *input.DeliveryRadiusKM <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery radius must be positive")
		}
		updates["delivery_radius_km"] = *input.DeliveryRadiusKM
	}
	if input.SocialMedia != nil {
		updates["social_media"] = input.SocialMedia
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, farmerID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update farmer")
		}
	}
	return s.Get(ctx, farmerID)
}

func (s *service) Verify(ctx context.Context, farmerID, adminID uuid.UUID) (*FarmerDTO, error) {
	var verified *models.Farmer
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		farmer, err := repo.FindByID(ctx, farmerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "farmer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer")
		}
		if farmer.IsVerified {
			verified = farmer
			return nil
		}

		now := time.Now().UTC()
		err = repo.Update(ctx, farmer.ID, map[string]any{
			"is_verified": true,
			"verified_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify farmer")
		}
		farmer.IsVerified = true
		farmer.VerifiedAt = &now

		event := outbox.DomainEvent{
			EventType:     enums.EventFarmerVerified,
			AggregateType: enums.AggregateFarmer,
			AggregateID:   farmer.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: string(enums.UserRoleAdmin)},
			Data: FarmerVerifiedEvent{
				FarmerID: farmer.ID,
				UserID:   farmer.UserID,
				FarmName: farmer.FarmName,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue event")
		}

		verified = farmer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(verified), nil
}

func (s *service) findFarmer(ctx context.Context, id uuid.UUID) (*models.Farmer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farmer id required")
	}
	farmer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farmer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer")
	}
	return farmer, nil
}
