package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/api/validators"
	logisticssvc "github.com/farmarket/farmarket-backend/internal/logistics"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// PickupPointList returns active pickup points. Admins can include inactive.
func PickupPointList(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		includeInactive, err := validators.ParseQueryBool(r, "includeInactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		points, err := svc.ListPickupPoints(r.Context(), includeInactive != nil && *includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, points)
	}
}

// PickupPointGet returns one pickup point.
func PickupPointGet(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		point, err := svc.GetPickupPoint(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, point)
	}
}

type pickupPointRequest struct {
	Name         string         `json:"name" validate:"required,max=200"`
	Address      *types.Address `json:"address,omitempty"`
	WorkingHours *types.JSONMap `json:"workingHours,omitempty"`
	Phone        *string        `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email        *string        `json:"email,omitempty" validate:"omitempty,email"`
	Capacity     *int           `json:"capacity,omitempty" validate:"omitempty,min=0"`
	IsActive     *bool          `json:"isActive,omitempty"`
}

func (req pickupPointRequest) toInput() logisticssvc.PickupPointInput {
	return logisticssvc.PickupPointInput{
		Name:         validators.SanitizeString(req.Name, 200),
		Address:      req.Address,
		WorkingHours: req.WorkingHours,
		Phone:        req.Phone,
		Email:        req.Email,
		Capacity:     req.Capacity,
		IsActive:     req.IsActive,
	}
}

// AdminCreatePickupPoint registers a pickup location.
func AdminCreatePickupPoint(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		var payload pickupPointRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		point, err := svc.CreatePickupPoint(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, point)
	}
}

// AdminUpdatePickupPoint edits a pickup location.
func AdminUpdatePickupPoint(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pickupPointRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		point, err := svc.UpdatePickupPoint(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, point)
	}
}

// AdminDeactivatePickupPoint takes a pickup location out of rotation.
func AdminDeactivatePickupPoint(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeactivatePickupPoint(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"deactivated": true})
	}
}

// OrderDelivery returns the delivery record attached to an order.
func OrderDelivery(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.GetDeliveryByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, delivery)
	}
}

// AdminListDeliveries pages through deliveries with status/type filters.
func AdminListDeliveries(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter logisticssvc.DeliveryFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseDeliveryStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status"))
				return
			}
			filter.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			deliveryType, err := enums.ParseDeliveryType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery type"))
				return
			}
			filter.Type = &deliveryType
		}

		deliveries, total, err := svc.ListDeliveries(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WritePage(w, deliveries, params.Meta(total))
	}
}

type assignDriverRequest struct {
	Driver types.JSONMap `json:"driver" validate:"required"`
	Notes  *string       `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// AdminAssignDriver attaches courier details to a delivery.
func AdminAssignDriver(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		deliveryID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignDriverRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.AssignDriver(r.Context(), logisticssvc.AssignDriverInput{
			DeliveryID: deliveryID,
			Driver:     payload.Driver,
			Notes:      payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, delivery)
	}
}

type rescheduleRequest struct {
	Date     time.Time       `json:"date" validate:"required"`
	TimeSlot *types.TimeSlot `json:"timeSlot,omitempty"`
}

// AdminRescheduleDelivery moves a delivery to a new date and slot.
func AdminRescheduleDelivery(svc logisticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "logistics service unavailable"))
			return
		}

		deliveryID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload rescheduleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.Reschedule(r.Context(), deliveryID, payload.Date, payload.TimeSlot)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, delivery)
	}
}
