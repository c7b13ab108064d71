package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/catalog"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateInput describes a new review of a delivered product.
type CreateInput struct {
	CustomerID uuid.UUID
	ProductID  uuid.UUID
	OrderID    uuid.UUID
	Rating     int
	Comment    *string
	Images     []string
}

// ReviewCreatedEvent is queued when a review lands.
type ReviewCreatedEvent struct {
	ReviewID   uuid.UUID `json:"reviewId"`
	ProductID  uuid.UUID `json:"productId"`
	FarmerID   uuid.UUID `json:"farmerId"`
	CustomerID uuid.UUID `json:"customerId"`
	Rating     int       `json:"rating"`
}

// UpdateInput carries the review fields a customer may change. Nil means
// leave unchanged.
type UpdateInput struct {
	Rating  *int
	Comment *string
	Images  *[]string
}

// Service defines review operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*ReviewDTO, error)
	Update(ctx context.Context, reviewID, customerID uuid.UUID, input UpdateInput) (*ReviewDTO, error)
	Delete(ctx context.Context, reviewID, customerID uuid.UUID) error
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]*ReviewDTO, int64, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID, params pagination.Params) ([]*ReviewDTO, int64, error)
	Reply(ctx context.Context, reviewID, farmerID uuid.UUID, reply string) (*ReviewDTO, error)
	MarkHelpful(ctx context.Context, reviewID uuid.UUID) error
	RefreshRatings(ctx context.Context, productID, farmerID uuid.UUID) error
}

type service struct {
	db       *db.Client
	repo     Repository
	products catalog.Repository
	outbox   outboxPublisher
	now      func() time.Time
}

// ServiceParams bundles the dependencies for the review service.
type ServiceParams struct {
	DB       *db.Client
	Repo     Repository
	Products catalog.Repository
	Outbox   outboxPublisher
}

// NewService builds the review service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		db:       params.DB,
		repo:     params.Repo,
		products: params.Products,
		outbox:   params.Outbox,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ReviewDTO, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	purchased, err := s.repo.HasDeliveredOrderWithProduct(ctx, input.CustomerID, input.OrderID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify purchase")
	}
	if !purchased {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reviews require a delivered order containing the product")
	}

	review := &models.Review{
		ProductID:  input.ProductID,
		CustomerID: input.CustomerID,
		OrderID:    input.OrderID,
		FarmerID:   product.FarmerID,
		Rating:     input.Rating,
		Comment:    input.Comment,
		Images:     pq.StringArray(input.Images),
		IsVerified: true,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "reviews_customer_product_order_key") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		if err := repo.RefreshProductRating(ctx, input.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh product rating")
		}
		if err := repo.RefreshFarmerRating(ctx, product.FarmerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh farmer rating")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: string(enums.UserRoleCustomer)},
			Data: ReviewCreatedEvent{
				ReviewID:   review.ID,
				ProductID:  input.ProductID,
				FarmerID:   product.FarmerID,
				CustomerID: input.CustomerID,
				Rating:     input.Rating,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(review), nil
}

func (s *service) Update(ctx context.Context, reviewID, customerID uuid.UUID, input UpdateInput) (*ReviewDTO, error) {
	review, err := s.ownedReview(ctx, reviewID, customerID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Rating != nil {
		if *input.Rating < 1 || *input.Rating > 5 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
		}
		updates["rating"] = *input.Rating
	}
	if input.Comment != nil {
		updates["comment"] = *input.Comment
	}
	if input.Images != nil {
		updates["images"] = pq.StringArray(*input.Images)
	}
	if len(updates) == 0 {
		return FromModel(review), nil
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, reviewID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
		}
		if err := repo.RefreshProductRating(ctx, review.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh product rating")
		}
		if err := repo.RefreshFarmerRating(ctx, review.FarmerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh farmer rating")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	review, err = s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review")
	}
	return FromModel(review), nil
}

func (s *service) Delete(ctx context.Context, reviewID, customerID uuid.UUID) error {
	review, err := s.ownedReview(ctx, reviewID, customerID)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Delete(ctx, reviewID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		if err := repo.RefreshProductRating(ctx, review.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh product rating")
		}
		if err := repo.RefreshFarmerRating(ctx, review.FarmerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh farmer rating")
		}
		return nil
	})
}

func (s *service) ownedReview(ctx context.Context, reviewID, customerID uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if review.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "review does not belong to customer")
	}
	return review, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]*ReviewDTO, int64, error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListByProduct(ctx, productID, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return FromModels(rows), total, nil
}

func (s *service) ListByFarmer(ctx context.Context, farmerID uuid.UUID, params pagination.Params) ([]*ReviewDTO, int64, error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListByFarmer(ctx, farmerID, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return FromModels(rows), total, nil
}

func (s *service) Reply(ctx context.Context, reviewID, farmerID uuid.UUID, reply string) (*ReviewDTO, error) {
	if reply == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reply text required")
	}

	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if review.FarmerID != farmerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "review does not concern farmer")
	}

	now := s.now().UTC()
	updates := map[string]any{
		"farmer_reply": reply,
		"replied_at":   now,
	}
	if err := s.repo.Update(ctx, reviewID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reply")
	}

	review.FarmerReply = &reply
	review.RepliedAt = &now
	return FromModel(review), nil
}

func (s *service) MarkHelpful(ctx context.Context, reviewID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, reviewID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if err := s.repo.IncrementHelpful(ctx, reviewID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment helpful count")
	}
	return nil
}

// RefreshRatings recomputes aggregates outside the create path, used by the
// nightly consistency job.
func (s *service) RefreshRatings(ctx context.Context, productID, farmerID uuid.UUID) error {
	if productID != uuid.Nil {
		if err := s.repo.RefreshProductRating(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh product rating")
		}
	}
	if farmerID != uuid.Nil {
		if err := s.repo.RefreshFarmerRating(ctx, farmerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh farmer rating")
		}
	}
	return nil
}
