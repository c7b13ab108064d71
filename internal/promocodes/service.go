package promocodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

var hundred = decimal.NewFromInt(100)

// LineItem carries the catalog references of one order line, used to
// evaluate a code's applicability filters.
type LineItem struct {
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	FarmerID   uuid.UUID
}

// Quote is the outcome of validating a promo code against an order amount.
type Quote struct {
	PromoCode    *models.PromoCode `json:"-"`
	Code         string            `json:"code"`
	Type         enums.PromoType   `json:"type"`
	Discount     decimal.Decimal   `json:"discount"`
	FreeShipping bool              `json:"freeShipping"`
}

// CreateInput captures a new promo code definition.
type CreateInput struct {
	Code              string
	Description       *string
	Type              enums.PromoType
	Value             decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int
	PerUserLimit      int
	StartDate         time.Time
	EndDate           time.Time
	SpecificUsers     []uuid.UUID
	CreatedBy         uuid.UUID
}

// UpdateInput carries the mutable promo fields. Nil means leave unchanged.
type UpdateInput struct {
	Description       *string
	Value             *decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int
	PerUserLimit      *int
	StartDate         *time.Time
	EndDate           *time.Time
	SpecificUsers     *[]uuid.UUID
	IsActive          *bool
}

// Service exposes promo code operations.
type Service interface {
	Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount decimal.Decimal, items []LineItem) (*Quote, error)
	// Apply finalizes a validated quote inside the order transaction.
	Apply(ctx context.Context, tx *gorm.DB, quote *Quote, userID, orderID uuid.UUID) error
	Create(ctx context.Context, input CreateInput) (*models.PromoCode, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PromoCode, error)
	List(ctx context.Context, params pagination.Params) ([]models.PromoCode, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the promo code service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo code repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount decimal.Decimal, items []LineItem) (*Quote, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	if orderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount cannot be negative")
	}

	promo, err := s.repo.FindByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}

	now := s.now()
	if !promo.ActiveAt(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not active")
	}
	if !promo.AvailableTo(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not available for this account")
	}
	if !appliesToItems(promo, items) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code does not apply to these items")
	}
	if orderAmount.LessThan(promo.MinOrderAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order below minimum for promo code").
			WithDetails(map[string]any{"minOrderAmount": promo.MinOrderAmount})
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code usage limit reached")
	}
	if userID != uuid.Nil && promo.PerUserLimit > 0 {
		used, err := s.repo.CountUserUsages(ctx, promo.ID, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count promo usages")
		}
		if used >= int64(promo.PerUserLimit) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code already used")
		}
	}

	quote := &Quote{
		PromoCode: promo,
		Code:      promo.Code,
		Type:      promo.Type,
		Discount:  decimal.Zero,
	}
	switch promo.Type {
	case enums.PromoTypePercentage:
		discount := orderAmount.Mul(promo.Value).Div(hundred)
		if promo.MaxDiscountAmount != nil && discount.GreaterThan(*promo.MaxDiscountAmount) {
			discount = *promo.MaxDiscountAmount
		}
		quote.Discount = discount.Round(2)
	case enums.PromoTypeFixedAmount:
		discount := promo.Value
		if discount.GreaterThan(orderAmount) {
			discount = orderAmount
		}
		quote.Discount = discount.Round(2)
	case enums.PromoTypeFreeShipping:
		quote.FreeShipping = true
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid promo type")
	}

	return quote, nil
}

// appliesToItems checks the code's applicability filters. A code with no
// filters applies to any order; otherwise at least one line must satisfy
// every non-empty filter list.
func appliesToItems(promo *models.PromoCode, items []LineItem) bool {
	if len(promo.ApplicableProducts) == 0 && len(promo.ApplicableCategories) == 0 && len(promo.ApplicableFarmers) == 0 {
		return true
	}
	for _, item := range items {
		if !listAllows(promo.ApplicableProducts, item.ProductID) {
			continue
		}
		if !listAllows(promo.ApplicableCategories, item.CategoryID) {
			continue
		}
		if !listAllows(promo.ApplicableFarmers, item.FarmerID) {
			continue
		}
		return true
	}
	return false
}

func uuidStrings(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		out = append(out, id.String())
	}
	return out
}

func listAllows(list []string, id uuid.UUID) bool {
	if len(list) == 0 {
		return true
	}
	want := id.String()
	for _, entry := range list {
		if entry == want {
			return true
		}
	}
	return false
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, quote *Quote, userID, orderID uuid.UUID) error {
	if quote == nil || quote.PromoCode == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo quote required")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for promo apply")
	}

	repo := s.repo.WithTx(tx)

	claimed, err := repo.ClaimGlobalUsage(ctx, quote.PromoCode.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim promo usage")
	}
	if !claimed {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo code usage limit reached")
	}

	usage := &models.PromoUsage{
		PromoCodeID: quote.PromoCode.ID,
		UserID:      userID,
		OrderID:     orderID,
		Discount:    quote.Discount,
	}
	if err := repo.RecordUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record promo usage")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid promo type")
	}
	if input.Type != enums.PromoTypeFreeShipping {
		if input.Value.IsNegative() || input.Value.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo value must be positive")
		}
		if input.Type == enums.PromoTypePercentage && input.Value.GreaterThan(hundred) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage cannot exceed 100")
		}
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo end date must follow start date")
	}
	perUser := input.PerUserLimit
	if perUser <= 0 {
		perUser = 1
	}

	if _, err := s.repo.FindByCode(ctx, code); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promo code already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promo code")
	}

	promo := &models.PromoCode{
		Code:              code,
		Description:       input.Description,
		Type:              input.Type,
		Value:             input.Value.Round(2),
		MinOrderAmount:    input.MinOrderAmount.Round(2),
		MaxDiscountAmount: input.MaxDiscountAmount,
		UsageLimit:        input.UsageLimit,
		PerUserLimit:      perUser,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		SpecificUsers:     uuidStrings(input.SpecificUsers),
		IsActive:          true,
		CreatedBy:         input.CreatedBy,
	}
	promo, err := s.repo.Create(ctx, promo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promo code")
	}
	return promo, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PromoCode, error) {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Value != nil {
		if input.Value.IsNegative() || input.Value.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo value must be positive")
		}
		if promo.Type == enums.PromoTypePercentage && input.Value.GreaterThan(hundred) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage cannot exceed 100")
		}
		updates["value"] = input.Value.Round(2)
	}
	if input.MinOrderAmount != nil {
		updates["min_order_amount"] = input.MinOrderAmount.Round(2)
	}
	if input.MaxDiscountAmount != nil {
		updates["max_discount_amount"] = *input.MaxDiscountAmount
	}
	if input.UsageLimit != nil {
		updates["usage_limit"] = *input.UsageLimit
	}
	if input.PerUserLimit != nil {
		if *input.PerUserLimit <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "per-user limit must be positive")
		}
		updates["per_user_limit"] = *input.PerUserLimit
	}
	if input.StartDate != nil {
		updates["start_date"] = *input.StartDate
	}
	if input.EndDate != nil {
		updates["end_date"] = *input.EndDate
	}
	if input.SpecificUsers != nil {
		updates["specific_users"] = uuidStrings(*input.SpecificUsers)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update promo code")
		}
	}
	return s.Get(ctx, id)
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.PromoCode, int64, error) {
	params = params.Normalize()
	codes, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo codes")
	}
	return codes, total, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	return promo, nil
}
