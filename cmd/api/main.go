package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/farmarket/farmarket-backend/api/routes"
	"github.com/farmarket/farmarket-backend/internal/analytics"
	"github.com/farmarket/farmarket-backend/internal/auth"
	"github.com/farmarket/farmarket-backend/internal/cart"
	"github.com/farmarket/farmarket-backend/internal/catalog"
	"github.com/farmarket/farmarket-backend/internal/farmers"
	"github.com/farmarket/farmarket-backend/internal/inventory"
	"github.com/farmarket/farmarket-backend/internal/logistics"
	"github.com/farmarket/farmarket-backend/internal/media"
	"github.com/farmarket/farmarket-backend/internal/notifications"
	"github.com/farmarket/farmarket-backend/internal/orders"
	"github.com/farmarket/farmarket-backend/internal/payments"
	"github.com/farmarket/farmarket-backend/internal/promocodes"
	"github.com/farmarket/farmarket-backend/internal/reviews"
	"github.com/farmarket/farmarket-backend/internal/users"
	stripewebhook "github.com/farmarket/farmarket-backend/internal/webhooks/stripe"
	"github.com/farmarket/farmarket-backend/internal/wishlist"
	"github.com/farmarket/farmarket-backend/pkg/auth/session"
	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/email"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/migrate"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/redis"
	"github.com/farmarket/farmarket-backend/pkg/storage/gcs"
	"github.com/farmarket/farmarket-backend/pkg/stripe"
)

const stripeWebhookDedupTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gcs client", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()
	userRepo := users.NewRepository(gdb)
	farmerRepo := farmers.NewRepository(gdb)
	categoryRepo := catalog.NewCategoryRepository(gdb)
	productRepo := catalog.NewRepository(gdb)
	reviewRepo := reviews.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	orderRepo := orders.NewRepository(gdb)
	paymentRepo := payments.NewRepository(gdb)
	promoRepo := promocodes.NewRepository(gdb)
	notificationRepo := notifications.NewRepository(gdb)
	logisticsRepo := logistics.NewRepository(gdb)
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)

	var mailer email.Sender
	if mailClient, err := email.NewClient(cfg.Email, logg); err != nil {
		logg.Warn(context.Background(), "email client not configured, account emails disabled")
	} else {
		mailer = mailClient
	}

	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Mailer:         mailer,
		Logger:         logg,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		PublicBaseURL:  cfg.App.PublicBaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	farmerService, err := farmers.NewService(dbClient, farmerRepo, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create farmer service", err)
		os.Exit(1)
	}

	categoryService, err := catalog.NewCategoryService(categoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create category service", err)
		os.Exit(1)
	}

	productService, err := catalog.NewService(productRepo, categoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	reviewService, err := reviews.NewService(reviews.ServiceParams{
		DB:       dbClient,
		Repo:     reviewRepo,
		Products: productRepo,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	wishlistService, err := wishlist.NewService(gdb, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist service", err)
		os.Exit(1)
	}

	promoService, err := promocodes.NewService(promoRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create promo service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		DB:        dbClient,
		Repo:      orderRepo,
		Products:  productRepo,
		Inventory: inventory.NewAdjuster(),
		Promos:    promoService,
		Carts:     cartRepo,
		Outbox:    outboxService,
		Policy:    cfg.Policy,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		DB:       dbClient,
		Repo:     paymentRepo,
		Orders:   orderRepo,
		Provider: stripeClient,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	notificationHub := notifications.NewHub(logg)
	notificationService, err := notifications.NewService(notificationRepo, notificationHub)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	logisticsService, err := logistics.NewService(logisticsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create logistics service", err)
		os.Exit(1)
	}

	mediaService, err := media.NewService(gcsClient, cfg.GCS.UploadURLExpiry)
	if err != nil {
		logg.Error(context.Background(), "failed to create media service", err)
		os.Exit(1)
	}

	analyticsService, err := analytics.NewService(gdb, redisClient, cfg.Policy.LowStockThreshold, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(paymentService)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripeWebhookDedupTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			userService,
			farmerService,
			categoryService,
			productService,
			reviewService,
			cartService,
			wishlistService,
			orderService,
			paymentService,
			promoService,
			productRepo,
			notificationService,
			notificationHub,
			logisticsService,
			mediaService,
			analyticsService,
			stripeClient,
			stripeWebhookService,
			stripeWebhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
