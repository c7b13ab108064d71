package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmarket/farmarket-backend/api/controllers"
	webhookcontrollers "github.com/farmarket/farmarket-backend/api/controllers/webhooks"
	"github.com/farmarket/farmarket-backend/api/middleware"
	"github.com/farmarket/farmarket-backend/internal/analytics"
	"github.com/farmarket/farmarket-backend/internal/auth"
	"github.com/farmarket/farmarket-backend/internal/cart"
	"github.com/farmarket/farmarket-backend/internal/catalog"
	"github.com/farmarket/farmarket-backend/internal/farmers"
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
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/redis"
	"github.com/farmarket/farmarket-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisClient *redis.Client,
	sessions session.SessionChecker,
	authService auth.Service,
	userService users.Service,
	farmerService farmers.Service,
	categoryService catalog.CategoryService,
	productService catalog.Service,
	reviewService reviews.Service,
	cartService cart.Service,
	wishlistService wishlist.Service,
	orderService orders.Service,
	paymentService payments.Service,
	promoService promocodes.Service,
	promoProducts controllers.PromoLineLoader,
	notificationService notifications.Service,
	notificationHub *notifications.Hub,
	logisticsService logistics.Service,
	mediaService media.Service,
	analyticsService analytics.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbPinger, redisClient, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(
			middleware.AuthRateLimit(registerPolicy, redisClient, logg),
			middleware.Idempotency(redisClient, logg),
		).Post("/register", controllers.AuthRegister(authService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Get("/verify-email/{token}", controllers.AuthVerifyEmail(authService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/forgot-password", controllers.AuthForgotPassword(authService, logg))
		r.Patch("/reset-password/{token}", controllers.AuthResetPassword(authService, logg))
	})

	// Public catalog surface.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(productService, logg))
		r.Get("/{id}", controllers.ProductGet(productService, logg))
		r.Get("/{id}/reviews", controllers.ReviewListByProduct(reviewService, logg))
	})
	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", controllers.CategoryList(categoryService, logg))
		r.Get("/{id}", controllers.CategoryGet(categoryService, logg))
	})
	r.Get("/api/v1/farmers", controllers.FarmerList(farmerService, logg))
	r.Get("/api/v1/farmers/{id}", controllers.FarmerGet(farmerService, logg))
	r.Get("/api/v1/farmers/{id}/reviews", controllers.ReviewListByFarmer(reviewService, logg))
	r.Get("/api/v1/pickup-points", controllers.PickupPointList(logisticsService, logg))
	r.Get("/api/v1/pickup-points/{id}", controllers.PickupPointGet(logisticsService, logg))

	// Authenticated surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/auth/logout", controllers.AuthLogout(authService, logg))

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", controllers.MyProfile(userService, logg))
			r.Patch("/", controllers.UpdateMyProfile(userService, logg))
			r.Delete("/", controllers.DeactivateMyAccount(userService, logg))
		})

		r.Post("/farmers", controllers.FarmerApply(farmerService, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Put("/items/{productId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistList(wishlistService, logg))
			r.Post("/", controllers.WishlistAdd(wishlistService, logg))
			r.Delete("/{productId}", controllers.WishlistRemove(wishlistService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(orderService, logg))
			r.Get("/", controllers.MyOrders(orderService, logg))
			r.Get("/{id}", controllers.OrderGet(orderService, logg))
			r.Post("/{id}/cancel", controllers.OrderCancel(orderService, logg))
			r.Post("/{id}/payment", controllers.OrderCreatePaymentIntent(paymentService, logg))
			r.Get("/{id}/payment", controllers.OrderPayment(paymentService, logg))
			r.Get("/{id}/delivery", controllers.OrderDelivery(logisticsService, logg))
		})

		r.Post("/products/{id}/reviews", controllers.ReviewCreate(reviewService, logg))
		r.Patch("/reviews/{id}", controllers.ReviewUpdate(reviewService, logg))
		r.Delete("/reviews/{id}", controllers.ReviewDelete(reviewService, logg))
		r.Post("/reviews/{id}/helpful", controllers.ReviewMarkHelpful(reviewService, logg))

		r.Post("/promo-codes/validate", controllers.PromoValidate(promoService, promoProducts, logg))

		r.Post("/media/presign", controllers.MediaPresign(mediaService, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationList(notificationService, logg))
			r.Get("/unread-count", controllers.NotificationUnreadCount(notificationService, logg))
			r.Get("/stream", controllers.NotificationStream(notificationHub, logg))
			r.Post("/read-all", controllers.NotificationMarkAllRead(notificationService, logg))
			r.Post("/{id}/read", controllers.NotificationMarkRead(notificationService, logg))
		})

		r.Route("/farmer", func(r chi.Router) {
			r.Use(middleware.RequireFarmerProfile(logg))

			r.Get("/profile", controllers.MyFarmerProfile(farmerService, logg))
			r.Patch("/profile", controllers.UpdateMyFarmerProfile(farmerService, logg))

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.FarmerCreateProduct(productService, logg))
				r.Patch("/{id}", controllers.FarmerUpdateProduct(productService, logg))
				r.Delete("/{id}", controllers.FarmerDeleteProduct(productService, logg))
				r.Post("/{id}/discount", controllers.FarmerAddDiscount(productService, logg))
				r.Delete("/{id}/discount", controllers.FarmerRemoveDiscounts(productService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.FarmerOrders(orderService, logg))
				r.Post("/{id}/status", controllers.FarmerUpdateOrderStatus(orderService, logg))
			})

			r.Post("/reviews/{id}/reply", controllers.FarmerReplyToReview(reviewService, logg))
			r.Get("/analytics", controllers.FarmerAnalyticsSummary(analyticsService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Get("/orders", controllers.AdminOrders(orderService, logg))
			r.Post("/farmers/{id}/verify", controllers.AdminVerifyFarmer(farmerService, logg))

			r.Route("/categories", func(r chi.Router) {
				r.Post("/", controllers.AdminCreateCategory(categoryService, logg))
				r.Patch("/{id}", controllers.AdminUpdateCategory(categoryService, logg))
				r.Delete("/{id}", controllers.AdminDeleteCategory(categoryService, logg))
			})

			r.Post("/payments/{id}/refund", controllers.AdminRefundPayment(paymentService, logg))

			r.Route("/promo-codes", func(r chi.Router) {
				r.Get("/", controllers.AdminListPromos(promoService, logg))
				r.Post("/", controllers.AdminCreatePromo(promoService, logg))
				r.Get("/{id}", controllers.AdminGetPromo(promoService, logg))
				r.Patch("/{id}", controllers.AdminUpdatePromo(promoService, logg))
			})

			r.Route("/pickup-points", func(r chi.Router) {
				r.Post("/", controllers.AdminCreatePickupPoint(logisticsService, logg))
				r.Patch("/{id}", controllers.AdminUpdatePickupPoint(logisticsService, logg))
				r.Delete("/{id}", controllers.AdminDeactivatePickupPoint(logisticsService, logg))
			})

			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/", controllers.AdminListDeliveries(logisticsService, logg))
				r.Post("/{id}/assign", controllers.AdminAssignDriver(logisticsService, logg))
				r.Post("/{id}/reschedule", controllers.AdminRescheduleDelivery(logisticsService, logg))
			})

			r.Get("/analytics", controllers.AdminMarketplaceSummary(analyticsService, logg))
		})
	})

	return r
}
