package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmarket/farmarket-backend/internal/analytics"
	"github.com/farmarket/farmarket-backend/internal/catalog"
	"github.com/farmarket/farmarket-backend/internal/cron"
	"github.com/farmarket/farmarket-backend/internal/notifications"
	"github.com/farmarket/farmarket-backend/internal/orders"
	"github.com/farmarket/farmarket-backend/internal/reviews"
	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/metrics"
	"github.com/farmarket/farmarket-backend/pkg/migrate"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	gdb := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)

	stockAlertJob, err := cron.NewStockAlertJob(cron.StockAlertJobParams{
		Logger:    logg,
		DB:        dbClient,
		Products:  catalog.NewRepository(gdb),
		Outbox:    outboxService,
		Threshold: cfg.Policy.LowStockThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock alert job", err)
		os.Exit(1)
	}

	orderReminderJob, err := cron.NewOrderReminderJob(cron.OrderReminderJobParams{
		Logger: logg,
		DB:     dbClient,
		Orders: orders.NewRepository(gdb),
		Outbox: outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order reminder job", err)
		os.Exit(1)
	}

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(gdb),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	ratingJob, err := cron.NewRatingRefreshJob(cron.RatingRefreshJobParams{
		Logger:     logg,
		Repository: reviews.NewRepository(gdb),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rating refresh job", err)
		os.Exit(1)
	}

	analyticsService, err := analytics.NewService(gdb, redisClient, cfg.Policy.LowStockThreshold, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	warmJob, err := cron.NewAnalyticsWarmJob(cron.AnalyticsWarmJobParams{
		Logger:    logg,
		Analytics: analyticsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics warm job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(stockAlertJob, orderReminderJob, cleanupJob, ratingJob, warmJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
