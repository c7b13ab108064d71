package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/api/validators"
	"github.com/farmarket/farmarket-backend/internal/catalog"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

// ProductList is the public catalog listing with filters and pagination.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := parseProductFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, total, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WritePage(w, products, params.Meta(total))
	}
}

func parseProductFilter(r *http.Request) (catalog.ProductFilter, error) {
	categoryID, err := validators.ParseQueryUUID(r, "categoryId")
	if err != nil {
		return catalog.ProductFilter{}, err
	}
	farmerID, err := validators.ParseQueryUUID(r, "farmerId")
	if err != nil {
		return catalog.ProductFilter{}, err
	}
	isOrganic, err := validators.ParseQueryBool(r, "organic")
	if err != nil {
		return catalog.ProductFilter{}, err
	}
	minPrice, err := validators.ParseQueryDecimal(r, "minPrice")
	if err != nil {
		return catalog.ProductFilter{}, err
	}
	maxPrice, err := validators.ParseQueryDecimal(r, "maxPrice")
	if err != nil {
		return catalog.ProductFilter{}, err
	}
	inStock, err := validators.ParseQueryBool(r, "inStock")
	if err != nil {
		return catalog.ProductFilter{}, err
	}

	filter := catalog.ProductFilter{
		CategoryID: categoryID,
		FarmerID:   farmerID,
		Search:     validators.SanitizeString(r.URL.Query().Get("search"), 200),
		IsOrganic:  isOrganic,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Sort:       strings.TrimSpace(r.URL.Query().Get("sort")),
	}
	if inStock != nil {
		filter.InStockOnly = *inStock
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
	}
	return filter, nil
}

// ProductGet returns one product and counts the view.
func ProductGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), id, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

type createProductRequest struct {
	CategoryID  uuid.UUID  `json:"categoryId" validate:"required"`
	Name        string     `json:"name" validate:"required,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       string     `json:"price" validate:"required"`
	Unit        string     `json:"unit" validate:"required"`
	Quantity    int        `json:"quantity" validate:"min=0"`
	MinOrderQty int        `json:"minOrderQty" validate:"omitempty,min=1"`
	Images      []string   `json:"images,omitempty" validate:"omitempty,dive,url"`
	Tags        []string   `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	IsOrganic   bool       `json:"isOrganic"`
	HarvestDate *time.Time `json:"harvestDate,omitempty"`
}

func (req createProductRequest) toInput(farmerID uuid.UUID) (catalog.CreateProductInput, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		return catalog.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	unit, err := enums.ParseProductUnit(strings.TrimSpace(req.Unit))
	if err != nil {
		return catalog.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
	}
	return catalog.CreateProductInput{
		FarmerID:    farmerID,
		CategoryID:  req.CategoryID,
		Name:        validators.SanitizeString(req.Name, 200),
		Description: req.Description,
		Price:       price,
		Unit:        unit,
		Quantity:    req.Quantity,
		MinOrderQty: req.MinOrderQty,
		Images:      req.Images,
		Tags:        req.Tags,
		IsOrganic:   req.IsOrganic,
		HarvestDate: req.HarvestDate,
	}, nil
}

// FarmerCreateProduct adds a product to the authenticated farmer's catalog.
func FarmerCreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		farmerID, err := currentFarmerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(farmerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	CategoryID  *uuid.UUID `json:"categoryId,omitempty"`
	Name        *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       *string    `json:"price,omitempty"`
	Unit        *string    `json:"unit,omitempty"`
	Quantity    *int       `json:"quantity,omitempty" validate:"omitempty,min=0"`
	MinOrderQty *int       `json:"minOrderQty,omitempty" validate:"omitempty,min=1"`
	Images      []string   `json:"images,omitempty" validate:"omitempty,dive,url"`
	Tags        []string   `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	IsOrganic   *bool      `json:"isOrganic,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	HarvestDate *time.Time `json:"harvestDate,omitempty"`
}

func (req updateProductRequest) toInput() (catalog.UpdateProductInput, error) {
	input := catalog.UpdateProductInput{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		MinOrderQty: req.MinOrderQty,
		Images:      req.Images,
		Tags:        req.Tags,
		IsOrganic:   req.IsOrganic,
		IsActive:    req.IsActive,
		HarvestDate: req.HarvestDate,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(strings.TrimSpace(*req.Price))
		if err != nil {
			return catalog.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
		}
		input.Price = &price
	}
	if req.Unit != nil {
		unit, err := enums.ParseProductUnit(strings.TrimSpace(*req.Unit))
		if err != nil {
			return catalog.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
		}
		input.Unit = &unit
	}
	return input, nil
}

// FarmerUpdateProduct applies partial updates to an owned product.
func FarmerUpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		farmerID, err := currentFarmerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), productID, farmerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// FarmerDeleteProduct deactivates an owned product.
func FarmerDeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		farmerID, err := currentFarmerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), productID, farmerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

type addDiscountRequest struct {
	Type      string    `json:"type" validate:"required"`
	Value     string    `json:"value" validate:"required"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

// FarmerAddDiscount attaches a time-bounded discount to an owned product.
func FarmerAddDiscount(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		farmerID, err := currentFarmerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParseDiscountType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		value, err := decimal.NewFromString(strings.TrimSpace(payload.Value))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount value"))
			return
		}

		product, err := svc.AddDiscount(r.Context(), productID, farmerID, catalog.DiscountInput{
			Type:      discountType,
			Value:     value,
			StartDate: payload.StartDate,
			EndDate:   payload.EndDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// FarmerRemoveDiscounts clears all discounts on an owned product.
func FarmerRemoveDiscounts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		farmerID, err := currentFarmerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.RemoveDiscounts(r.Context(), productID, farmerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}
