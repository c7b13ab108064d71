package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/api/validators"
	"github.com/farmarket/farmarket-backend/internal/catalog"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

// CategoryList returns the category tree. Admins can pass includeInactive.
func CategoryList(svc catalog.CategoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		includeInactive, err := validators.ParseQueryBool(r, "includeInactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		categories, err := svc.List(r.Context(), includeInactive != nil && *includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, categories)
	}
}

// CategoryGet returns one category by id.
func CategoryGet(svc catalog.CategoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, category)
	}
}

type createCategoryRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Slug        string     `json:"slug" validate:"required,max=100"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=1000"`
	ImageURL    *string    `json:"imageUrl,omitempty" validate:"omitempty,url"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	SortOrder   int        `json:"sortOrder" validate:"omitempty,min=0"`
}

// AdminCreateCategory adds a catalog category.
func AdminCreateCategory(svc catalog.CategoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.Create(r.Context(), catalog.CreateCategoryInput{
			Name:        validators.SanitizeString(payload.Name, 100),
			Slug:        validators.SanitizeString(payload.Slug, 100),
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
			ParentID:    payload.ParentID,
			SortOrder:   payload.SortOrder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

type updateCategoryRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=1000"`
	ImageURL    *string    `json:"imageUrl,omitempty" validate:"omitempty,url"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	SortOrder   *int       `json:"sortOrder,omitempty" validate:"omitempty,min=0"`
	IsActive    *bool      `json:"isActive,omitempty"`
}

// AdminUpdateCategory applies partial category updates.
func AdminUpdateCategory(svc catalog.CategoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.Update(r.Context(), id, catalog.UpdateCategoryInput{
			Name:        payload.Name,
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
			ParentID:    payload.ParentID,
			SortOrder:   payload.SortOrder,
			IsActive:    payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, category)
	}
}

// AdminDeleteCategory removes an empty category.
func AdminDeleteCategory(svc catalog.CategoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
