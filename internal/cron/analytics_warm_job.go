package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/farmarket/farmarket-backend/internal/analytics"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

type marketplaceSummarizer interface {
	MarketplaceSummary(ctx context.Context, from, to time.Time) (*analytics.MarketplaceSummary, error)
}

// AnalyticsWarmJobParams configure the dashboard cache warm job.
type AnalyticsWarmJobParams struct {
	Logger    *logger.Logger
	Analytics marketplaceSummarizer
}

// NewAnalyticsWarmJob builds the job that precomputes the default-window
// marketplace summary so dashboard requests land on a warm cache.
func NewAnalyticsWarmJob(params AnalyticsWarmJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Analytics == nil {
		return nil, fmt.Errorf("analytics service required")
	}
	return &analyticsWarmJob{
		logg: params.Logger,
		svc:  params.Analytics,
	}, nil
}

type analyticsWarmJob struct {
	logg *logger.Logger
	svc  marketplaceSummarizer
}

func (j *analyticsWarmJob) Name() string { return "analytics-cache-warm" }

func (j *analyticsWarmJob) Run(ctx context.Context) error {
	// Zero bounds select the same default window the dashboard uses.
	if _, err := j.svc.MarketplaceSummary(ctx, time.Time{}, time.Time{}); err != nil {
		return fmt.Errorf("warm marketplace summary: %w", err)
	}
	j.logg.Info(ctx, "marketplace summary cache warmed")
	return nil
}
