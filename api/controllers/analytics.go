package controllers

import (
	"net/http"
	"time"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/api/validators"
	analyticssvc "github.com/farmarket/farmarket-backend/internal/analytics"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

func parseWindow(r *http.Request) (from, to time.Time, err error) {
	fromPtr, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	toPtr, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if fromPtr != nil {
		from = *fromPtr
	}
	if toPtr != nil {
		to = *toPtr
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "window end precedes start")
	}
	return from, to, nil
}

// FarmerAnalyticsSummary returns sales and catalog metrics for the
// authenticated farmer over a date window.
func FarmerAnalyticsSummary(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		farmerID, err := currentFarmerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, to, err := parseWindow(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.FarmerSummary(r.Context(), farmerID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

// AdminMarketplaceSummary returns platform-wide metrics over a date window.
func AdminMarketplaceSummary(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		from, to, err := parseWindow(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.MarketplaceSummary(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}
