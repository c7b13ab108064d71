package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/api/middleware"
	"github.com/farmarket/farmarket-backend/internal/orders"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

// currentUserID extracts and parses the authenticated user id from the
// request context. Handlers behind the auth middleware always have one.
func currentUserID(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// currentFarmerID extracts the farmer profile id set by RequireFarmerProfile.
func currentFarmerID(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.FarmerIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer profile required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid farmer id")
	}
	return id, nil
}

// orderActor builds the acting identity orders and payments check access with.
func orderActor(ctx context.Context) (orders.Actor, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return orders.Actor{}, err
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid role")
	}
	actor := orders.Actor{UserID: userID, Role: role}
	if raw := middleware.FarmerIDFromContext(ctx); raw != "" {
		farmerID, err := uuid.Parse(raw)
		if err != nil {
			return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid farmer id")
		}
		actor.FarmerID = &farmerID
	}
	return actor, nil
}
