package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/farmarket/farmarket-backend/pkg/logger"
)

type fakeRatingRefresher struct {
	called int
	err    error
}

func (f *fakeRatingRefresher) RefreshAllRatings(ctx context.Context) error {
	f.called++
	return f.err
}

func TestRatingRefreshJobDelegates(t *testing.T) {
	repo := &fakeRatingRefresher{}
	job, err := NewRatingRefreshJob(RatingRefreshJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewRatingRefreshJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.called != 1 {
		t.Fatalf("expected one refresh, got %d", repo.called)
	}
}

func TestRatingRefreshJobPropagatesErrors(t *testing.T) {
	repo := &fakeRatingRefresher{err: errors.New("boom")}
	job, err := NewRatingRefreshJob(RatingRefreshJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewRatingRefreshJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
