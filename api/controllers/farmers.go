package controllers

import (
	"net/http"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/api/validators"
	farmersvc "github.com/farmarket/farmarket-backend/internal/farmers"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

type applyFarmerRequest struct {
	FarmName         string         `json:"farmName" validate:"required,max=200"`
	Description      *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	Specialties      []string       `json:"specialties,omitempty" validate:"omitempty,dive,max=100"`
	IsOrganic        bool           `json:"isOrganic"`
	FarmLocation     *types.Address `json:"farmLocation,omitempty"`
	DeliveryRadiusKM int            `json:"deliveryRadiusKm" validate:"omitempty,min=0,max=1000"`
	SocialMedia      *types.JSONMap `json:"socialMedia,omitempty"`
}

// FarmerApply registers a farmer profile for the authenticated user.
func FarmerApply(svc farmersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farmer service unavailable"))
			return
		}

		userID, err := currentUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload applyFarmerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		farmer, err := svc.Apply(r.Context(), farmersvc.ApplyInput{
			UserID:           userID,
			FarmName:         validators.SanitizeString(payload.FarmName, 200),
			Description:      payload.Description,
			Specialties:      payload.Specialties,
			IsOrganic:        payload.IsOrganic,
			FarmLocation:     payload.FarmLocation,
			DeliveryRadiusKM: payload.DeliveryRadiusKM,
			SocialMedia:      payload.SocialMedia,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, farmer)
	}
}

// FarmerGet returns a public farmer profile.
func FarmerGet(svc farmersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farmer service unavailable"))
			return
		}

		farmerID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		farmer, err := svc.Get(r.Context(), farmerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, farmer)
	}
}

// FarmerList returns the public farmer directory.
func FarmerList(svc farmersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farmer service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		isOrganic, err := validators.ParseQueryBool(r, "organic")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		verified, err := validators.ParseQueryBool(r, "verified")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := farmersvc.ListFilter{
			Search:    validators.SanitizeString(r.URL.Query().Get("search"), 200),
			IsOrganic: isOrganic,
		}
		if verified != nil {
			filter.VerifiedOnly = *verified
		}

		farmers, total, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WritePage(w, farmers, params.Meta(total))
	}
}

// MyFarmerProfile returns the farmer profile behind the authenticated user.
func MyFarmerProfile(svc farmersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farmer service unavailable"))
			return
		}

		userID, err := currentUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		farmer, err := svc.GetByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, farmer)
	}
}

type updateFarmerRequest struct {
	FarmName         *string        `json:"farmName,omitempty" validate:"omitempty,max=200"`
	Description      *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	Specialties      []string       `json:"specialties,omitempty" validate:"omitempty,dive,max=100"`
	IsOrganic        *bool          `json:"isOrganic,omitempty"`
	FarmLocation     *types.Address `json:"farmLocation,omitempty"`
	DeliveryRadiusKM *int           `json:"deliveryRadiusKm,omitempty" validate:"omitempty,min=0,max=1000"`
	SocialMedia      *types.JSONMap `json:"socialMedia,omitempty"`
}

// UpdateMyFarmerProfile applies partial farmer profile updates.
func UpdateMyFarmerProfile(svc farmersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farmer service unavailable"))
			return
		}

		farmerID, err := currentFarmerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateFarmerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		farmer, err := svc.Update(r.Context(), farmerID, farmersvc.UpdateInput{
			FarmName:         payload.FarmName,
			Description:      payload.Description,
			Specialties:      payload.Specialties,
			IsOrganic:        payload.IsOrganic,
			FarmLocation:     payload.FarmLocation,
			DeliveryRadiusKM: payload.DeliveryRadiusKM,
			SocialMedia:      payload.SocialMedia,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, farmer)
	}
}

// AdminVerifyFarmer marks a farmer profile as verified.
func AdminVerifyFarmer(svc farmersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farmer service unavailable"))
			return
		}

		adminID, err := currentUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		farmerID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		farmer, err := svc.Verify(r.Context(), farmerID, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, farmer)
	}
}
