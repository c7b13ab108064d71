package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farmarket/farmarket-backend/internal/analytics"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

type fakeSummarizer struct {
	calls []struct{ from, to time.Time }
	err   error
}

func (f *fakeSummarizer) MarketplaceSummary(ctx context.Context, from, to time.Time) (*analytics.MarketplaceSummary, error) {
	f.calls = append(f.calls, struct{ from, to time.Time }{from, to})
	if f.err != nil {
		return nil, f.err
	}
	return &analytics.MarketplaceSummary{}, nil
}

func newAnalyticsWarmJob(t *testing.T, svc *fakeSummarizer) Job {
	t.Helper()
	job, err := NewAnalyticsWarmJob(AnalyticsWarmJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Analytics: svc,
	})
	if err != nil {
		t.Fatalf("NewAnalyticsWarmJob: %v", err)
	}
	return job
}

func TestAnalyticsWarmJobRequestsDefaultWindow(t *testing.T) {
	svc := &fakeSummarizer{}
	job := newAnalyticsWarmJob(t, svc)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected 1 summary call, got %d", len(svc.calls))
	}
	call := svc.calls[0]
	if !call.from.IsZero() || !call.to.IsZero() {
		t.Fatalf("expected zero window bounds, got %v..%v", call.from, call.to)
	}
}

func TestAnalyticsWarmJobPropagatesError(t *testing.T) {
	svc := &fakeSummarizer{err: errors.New("boom")}
	job := newAnalyticsWarmJob(t, svc)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnalyticsWarmJobRequiresService(t *testing.T) {
	_, err := NewAnalyticsWarmJob(AnalyticsWarmJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
