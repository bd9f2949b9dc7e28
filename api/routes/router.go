package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type redisStore interface {
	middleware.ResponseStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type cartMerger interface {
	Merge(ctx context.Context, userID uuid.UUID, sessionToken string) (cart.MergeResult, error)
}

type paymentService interface {
	ConfirmPayment(ctx context.Context, owner cart.Owner, orderID uuid.UUID, intentID string) (*reconciliation.ConfirmResult, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID, amountMinor *int64) (*payments.Refund, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signingSecretProvider interface {
	SigningSecret() string
}

// Params carries everything the HTTP surface is built from.
type Params struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis redisStore

	Carts    cart.Service
	Merger   cartMerger
	Checkout checkoutsvc.Service
	Payments paymentService

	StripeClient   signingSecretProvider
	WebhookService webhookcontrollers.StripeWebhookService
	WebhookGuard   webhookGuard

	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger
	cookie := middleware.NewSessionCookie(cfg.App, cfg.Cart)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}, logg))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/stripe/webhook", webhookcontrollers.StripeWebhook(p.WebhookService, p.StripeClient, p.WebhookGuard, logg))

	idempotent := middleware.Idempotency(p.Redis, cfg.Checkout.IdempotencyTTL, logg)
	checkoutLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "checkout",
		Limit:  cfg.Checkout.RateLimitPerMinute,
		Window: time.Minute,
	}, p.Redis, logg)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, cookie, logg))

		cartHandlers := cartcontrollers.NewHandlers(p.Carts, p.Merger, cookie, logg)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandlers.Get)
			r.Delete("/", cartHandlers.Clear)
			r.Get("/count", cartHandlers.Count)
			r.Post("/items", cartHandlers.AddItem)
			r.Put("/items/{id}", cartHandlers.UpdateItem)
			r.Delete("/items/{id}", cartHandlers.RemoveItem)
			r.With(middleware.RequireUser(logg)).Post("/merge", cartHandlers.Merge)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(checkoutLimit)
			r.With(idempotent).Post("/payment-intent", controllers.CreatePaymentIntent(p.Checkout, logg))
			r.With(idempotent).Post("/confirm-payment", controllers.ConfirmPayment(p.Payments, cookie, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.With(idempotent).Post("/orders/{orderId}/refund", controllers.AdminRefundOrder(p.Payments, logg))
		})
	})

	return r
}
