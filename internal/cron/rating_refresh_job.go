package cron

import (
	"context"
	"fmt"

	"github.com/farmarket/farmarket-backend/pkg/logger"
)

type ratingRefresher interface {
	RefreshAllRatings(ctx context.Context) error
}

// RatingRefreshJobParams configure the aggregate reconciliation job.
type RatingRefreshJobParams struct {
	Logger     *logger.Logger
	Repository ratingRefresher
}

// NewRatingRefreshJob builds the job that reconciles stored product and
// farmer rating aggregates with their review sets.
func NewRatingRefreshJob(params RatingRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	return &ratingRefreshJob{
		logg: params.Logger,
		repo: params.Repository,
	}, nil
}

type ratingRefreshJob struct {
	logg *logger.Logger
	repo ratingRefresher
}

func (j *ratingRefreshJob) Name() string { return "rating-refresh" }

func (j *ratingRefreshJob) Run(ctx context.Context) error {
	if err := j.repo.RefreshAllRatings(ctx); err != nil {
		return fmt.Errorf("refresh rating aggregates: %w", err)
	}
	j.logg.Info(ctx, "rating aggregates reconciled")
	return nil
}
