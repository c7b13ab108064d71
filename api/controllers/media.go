package controllers

import (
	"net/http"
	"strings"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/api/validators"
	mediasvc "github.com/farmarket/farmarket-backend/internal/media"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

type presignRequest struct {
	Kind      string `json:"kind" validate:"required"`
	MimeType  string `json:"mimeType" validate:"required"`
	FileName  string `json:"fileName" validate:"required,max=255"`
	SizeBytes int64  `json:"sizeBytes" validate:"required,gt=0"`
}

// MediaPresign issues a short-lived signed URL for direct upload.
func MediaPresign(svc mediasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media service unavailable"))
			return
		}

		userID, err := currentUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload presignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		output, err := svc.PresignUpload(userID, mediasvc.PresignInput{
			Kind:      mediasvc.Kind(strings.ToLower(strings.TrimSpace(payload.Kind))),
			MimeType:  strings.TrimSpace(payload.MimeType),
			FileName:  strings.TrimSpace(payload.FileName),
			SizeBytes: payload.SizeBytes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, output)
	}
}
