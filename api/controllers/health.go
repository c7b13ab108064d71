package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/farmarket/farmarket-backend/api/responses"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

// HealthLive reports process liveness.
func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// HealthReady reports readiness by pinging the backing stores.
func HealthReady(dbClient, redisClient pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"db": "ok", "redis": "ok"}
		healthy := true

		if dbClient == nil {
			checks["db"] = "unavailable"
			healthy = false
		} else if err := dbClient.Ping(ctx); err != nil {
			logg.Warn(ctx, "health check: database ping failed")
			checks["db"] = "unavailable"
			healthy = false
		}

		if redisClient == nil {
			checks["redis"] = "unavailable"
			healthy = false
		} else if err := redisClient.Ping(ctx); err != nil {
			logg.Warn(ctx, "health check: redis ping failed")
			checks["redis"] = "unavailable"
			healthy = false
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}
