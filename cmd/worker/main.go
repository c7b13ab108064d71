package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/farmarket/farmarket-backend/internal/analytics"
	analyticsworker "github.com/farmarket/farmarket-backend/internal/analytics/worker"
	analyticswriter "github.com/farmarket/farmarket-backend/internal/analytics/writer"
	"github.com/farmarket/farmarket-backend/internal/farmers"
	"github.com/farmarket/farmarket-backend/internal/notifications"
	"github.com/farmarket/farmarket-backend/internal/users"
	pkgbigquery "github.com/farmarket/farmarket-backend/pkg/bigquery"
	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/email"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/migrate"
	"github.com/farmarket/farmarket-backend/pkg/outbox/idempotency"
	"github.com/farmarket/farmarket-backend/pkg/pubsub"
	"github.com/farmarket/farmarket-backend/pkg/redis"
)

const consumerDedupTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	bigqueryClient, err := pkgbigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bigqueryClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery", err)
		}
	}()

	mailer, err := email.NewClient(cfg.Email, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email client", err)
		os.Exit(1)
	}

	dedup, err := idempotency.NewManager(redisClient, consumerDedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()
	notificationService, err := notifications.NewService(notifications.NewRepository(gdb), nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Service:      notificationService,
		Farmers:      farmers.NewRepository(gdb),
		Users:        users.NewRepository(gdb),
		Mailer:       mailer,
		Subscription: pubsubClient.NotificationSubscription(),
		Idempotency:  dedup,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}

	bqWriter, err := analyticswriter.New(bigqueryClient, analyticswriter.Config{
		MarketplaceTable: cfg.BigQuery.MarketplaceEventsTable,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics writer", err)
		os.Exit(1)
	}

	recorder, err := analytics.NewEventRecorder(bqWriter, cfg.Policy.Currency)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics recorder", err)
		os.Exit(1)
	}

	analyticsWorker, err := analyticsworker.NewService(pubsubClient.AnalyticsSubscription(), recorder, dedup, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return consumer.Run(groupCtx)
	})
	group.Go(func() error {
		return analyticsWorker.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shut down")
}
