package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	params, err := buildRouterParams(cfg, logg, dbClient, redisClient, stripeClient, registry)
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

func buildRouterParams(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *pkgstripe.Client,
	registry *prometheus.Registry,
) (routes.Params, error) {
	gormDB := dbClient.DB()
	ledger := inventory.NewLedger(gormDB)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	alerts, err := inventory.NewAlerts(dbClient, ledger, emitter, logg)
	if err != nil {
		return routes.Params{}, err
	}

	cartRepo := cart.NewRepository(gormDB)
	carts, err := cart.NewService(cart.ServiceParams{
		Repo:     cartRepo,
		Tx:       dbClient,
		Stock:    ledger,
		GuestTTL: cfg.Cart.GuestTTL,
	})
	if err != nil {
		return routes.Params{}, err
	}
	merger, err := cart.NewMergeResolver(cartRepo, dbClient, ledger, logg)
	if err != nil {
		return routes.Params{}, err
	}

	orderRepo := orders.NewRepository(gormDB)
	builder, err := orders.NewBuilder(orders.BuilderParams{
		Tx:       dbClient,
		Orders:   orderRepo,
		Carts:    cartRepo,
		Stock:    ledger,
		Numbers:  orders.NewNumberGenerator(cfg.Order.NumberMaxAttempts),
		Outbox:   emitter,
		Currency: cfg.Stripe.NormalizedCurrency(),
		Logger:   logg,
	})
	if err != nil {
		return routes.Params{}, err
	}

	gateway, err := payments.NewStripeGateway(payments.StripeGatewayParams{
		API:      payments.NewStripeAPI(stripeClient),
		Currency: cfg.Stripe.NormalizedCurrency(),
		Timeout:  cfg.Stripe.Timeout,
		Logger:   logg,
		Metrics:  checkoutMetrics,
	})
	if err != nil {
		return routes.Params{}, err
	}

	engine, err := reconciliation.NewEngine(reconciliation.EngineParams{
		Tx:                      dbClient,
		Orders:                  orderRepo,
		Carts:                   cartRepo,
		Cleaner:                 carts,
		Stock:                   ledger,
		Alerts:                  alerts,
		Gateway:                 gateway,
		Outbox:                  emitter,
		Metrics:                 checkoutMetrics,
		Logger:                  logg,
		WebhookSettlesInventory: cfg.Reconciliation.WebhookSettlesInventory,
	})
	if err != nil {
		return routes.Params{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:      dbClient,
		Carts:   cartRepo,
		Builder: builder,
		Orders:  orderRepo,
		Gateway: gateway,
		Outbox:  emitter,
		Metrics: checkoutMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Params{}, err
	}

	webhookSvc, err := stripewebhook.NewService(engine)
	if err != nil {
		return routes.Params{}, err
	}
	guard, err := stripewebhook.NewReplayGuard(redisClient, cfg.Stripe.WebhookReplay, stripewebhook.DefaultReplayScope)
	if err != nil {
		return routes.Params{}, err
	}

	return routes.Params{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Carts:          carts,
		Merger:         merger,
		Checkout:       checkoutSvc,
		Payments:       engine,
		StripeClient:   stripeClient,
		WebhookService: webhookSvc,
		WebhookGuard:   guard,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		Gatherer:       registry,
	}, nil
}
