package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/api/validators"
	promosvc "github.com/farmarket/farmarket-backend/internal/promocodes"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

// PromoLineLoader resolves the catalog references needed to evaluate a
// promo code's applicability filters.
type PromoLineLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type validatePromoRequest struct {
	Code        string      `json:"code" validate:"required,max=50"`
	OrderAmount string      `json:"orderAmount" validate:"required"`
	ProductIDs  []uuid.UUID `json:"productIds,omitempty" validate:"omitempty,max=100"`
}

// PromoValidate quotes the discount a code would give on an order amount.
func PromoValidate(svc promosvc.Service, products PromoLineLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		userID, err := currentUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload validatePromoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(payload.OrderAmount))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order amount"))
			return
		}

		var lines []promosvc.LineItem
		if len(payload.ProductIDs) > 0 && products != nil {
			loaded, err := products.FindByIDs(r.Context(), payload.ProductIDs)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products"))
				return
			}
			lines = make([]promosvc.LineItem, 0, len(loaded))
			for i := range loaded {
				lines = append(lines, promosvc.LineItem{
					ProductID:  loaded[i].ID,
					CategoryID: loaded[i].CategoryID,
					FarmerID:   loaded[i].FarmerID,
				})
			}
		}

		quote, err := svc.Validate(r.Context(), payload.Code, userID, amount, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quote)
	}
}

type createPromoRequest struct {
	Code              string      `json:"code" validate:"required,max=50"`
	Description       *string     `json:"description,omitempty" validate:"omitempty,max=1000"`
	Type              string      `json:"type" validate:"required"`
	Value             string      `json:"value" validate:"required"`
	MinOrderAmount    string      `json:"minOrderAmount,omitempty"`
	MaxDiscountAmount *string     `json:"maxDiscountAmount,omitempty"`
	UsageLimit        *int        `json:"usageLimit,omitempty" validate:"omitempty,min=1"`
	PerUserLimit      int         `json:"perUserLimit" validate:"omitempty,min=1"`
	StartDate         time.Time   `json:"startDate" validate:"required"`
	EndDate           time.Time   `json:"endDate" validate:"required"`
	SpecificUsers     []uuid.UUID `json:"specificUsers,omitempty" validate:"omitempty,max=1000"`
}

// AdminCreatePromo registers a promo code.
func AdminCreatePromo(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		adminID, err := currentUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPromoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promoType, err := enums.ParsePromoType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promo type"))
			return
		}
		value, err := decimal.NewFromString(strings.TrimSpace(payload.Value))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promo value"))
			return
		}

		minOrder := decimal.Zero
		if s := strings.TrimSpace(payload.MinOrderAmount); s != "" {
			minOrder, err = decimal.NewFromString(s)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid minimum order amount"))
				return
			}
		}

		var maxDiscount *decimal.Decimal
		if payload.MaxDiscountAmount != nil && strings.TrimSpace(*payload.MaxDiscountAmount) != "" {
			parsed, err := decimal.NewFromString(strings.TrimSpace(*payload.MaxDiscountAmount))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid maximum discount amount"))
				return
			}
			maxDiscount = &parsed
		}

		promo, err := svc.Create(r.Context(), promosvc.CreateInput{
			Code:              strings.ToUpper(validators.SanitizeString(payload.Code, 50)),
			Description:       payload.Description,
			Type:              promoType,
			Value:             value,
			MinOrderAmount:    minOrder,
			MaxDiscountAmount: maxDiscount,
			UsageLimit:        payload.UsageLimit,
			PerUserLimit:      payload.PerUserLimit,
			StartDate:         payload.StartDate,
			EndDate:           payload.EndDate,
			SpecificUsers:     payload.SpecificUsers,
			CreatedBy:         adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, promo)
	}
}

type updatePromoRequest struct {
	Description       *string      `json:"description,omitempty" validate:"omitempty,max=1000"`
	Value             *string      `json:"value,omitempty"`
	MinOrderAmount    *string      `json:"minOrderAmount,omitempty"`
	MaxDiscountAmount *string      `json:"maxDiscountAmount,omitempty"`
	UsageLimit        *int         `json:"usageLimit,omitempty" validate:"omitempty,min=1"`
	PerUserLimit      *int         `json:"perUserLimit,omitempty" validate:"omitempty,min=1"`
	StartDate         *time.Time   `json:"startDate,omitempty"`
	EndDate           *time.Time   `json:"endDate,omitempty"`
	SpecificUsers     *[]uuid.UUID `json:"specificUsers,omitempty"`
	IsActive          *bool        `json:"isActive,omitempty"`
}

func parseOptionalDecimal(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return &parsed, nil
}

// AdminUpdatePromo applies partial promo code updates.
func AdminUpdatePromo(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updatePromoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		value, err := parseOptionalDecimal(payload.Value, "promo value")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		minOrder, err := parseOptionalDecimal(payload.MinOrderAmount, "minimum order amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxDiscount, err := parseOptionalDecimal(payload.MaxDiscountAmount, "maximum discount amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Update(r.Context(), id, promosvc.UpdateInput{
			Description:       payload.Description,
			Value:             value,
			MinOrderAmount:    minOrder,
			MaxDiscountAmount: maxDiscount,
			UsageLimit:        payload.UsageLimit,
			PerUserLimit:      payload.PerUserLimit,
			StartDate:         payload.StartDate,
			EndDate:           payload.EndDate,
			SpecificUsers:     payload.SpecificUsers,
			IsActive:          payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, promo)
	}
}

// AdminListPromos pages through every promo code.
func AdminListPromos(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promos, total, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WritePage(w, promos, params.Meta(total))
	}
}

// AdminGetPromo returns one promo code with its usage counters.
func AdminGetPromo(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, promo)
	}
}
