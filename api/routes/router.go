package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minelance/minelance-backend/api/controllers"
	webhookcontrollers "github.com/minelance/minelance-backend/api/controllers/webhooks"
	"github.com/minelance/minelance-backend/api/middleware"
	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/offers"
	"github.com/minelance/minelance-backend/internal/orders"
	"github.com/minelance/minelance-backend/internal/payments"
	"github.com/minelance/minelance-backend/internal/reports"
	"github.com/minelance/minelance-backend/internal/reviews"
	"github.com/minelance/minelance-backend/pkg/config"
	"github.com/minelance/minelance-backend/pkg/db"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/redis"
)

// Cache is the redis surface the HTTP layer needs: rate limit counters,
// recorded responses for Idempotency-Key replays and the readiness ping.
type Cache interface {
	redis.RateLimiter
	redis.ResponseStore
	redis.Pinger
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type paymentGuard interface {
	CheckAndMark(ctx context.Context, operationID string) (bool, error)
	Delete(ctx context.Context, operationID string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	dbP db.Pinger,
	cache Cache,
	users userLookup,
	ordersService orders.Service,
	offersService offers.Service,
	paymentsService payments.Service,
	paymentGuard paymentGuard,
	reportsService reports.Service,
	reviewsService reviews.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	offerPolicy := middleware.NewRateLimitPolicy("offers", cfg.RateLimit.OfferWindow, cfg.RateLimit.OfferLimit)
	reportPolicy := middleware.NewRateLimitPolicy("reports", cfg.RateLimit.ReportWindow, cfg.RateLimit.ReportLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbP, cache, logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(
			paymentsService,
			cfg.Payment.WebhookSecret,
			cfg.Payment.SignatureHeader,
			paymentGuard,
			logg,
		))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, users, logg),
			middleware.Idempotency(cache, logg),
		)

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.Get("/", controllers.ListOpenOrders(ordersService, logg))
			r.Get("/mine", controllers.ListMyOrders(ordersService, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderDetail(ordersService, logg))
				r.Post("/dispute", controllers.OpenDispute(ordersService, logg))
				r.With(middleware.RateLimit(offerPolicy, cache, logg)).Post("/offers", controllers.SubmitOffer(offersService, logg))
				r.Get("/offers", controllers.ListOffers(offersService, logg))
				r.Post("/offers/{offerId}/accept", controllers.AcceptOffer(offersService, logg))
				r.Post("/reviews", controllers.SubmitReview(reviewsService, logg))
			})
		})

		r.Get("/v1/users/{userId}/reviews", controllers.ListSellerReviews(reviewsService, logg))
		r.With(middleware.RateLimit(reportPolicy, cache, logg)).Post("/v1/reports", controllers.CreateReport(reportsService, logg))

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, users, logg),
			middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleModerator),
			middleware.Idempotency(cache, logg),
		)

		r.Get("/v1/reports", controllers.ListReports(reportsService, logg))
		r.Post("/v1/reports/{reportId}/resolve", controllers.ResolveReport(reportsService, logg))
		r.Post("/v1/orders/{orderId}/resolve-dispute", controllers.ResolveDispute(ordersService, logg))
	})

	return r
}
