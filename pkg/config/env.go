package config

// EnvPrefix namespaces every variable processed by envconfig.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "STOREFRONT_APP_ENV"
	EnvPort         = "STOREFRONT_APP_PORT"
	EnvLogLevel     = "STOREFRONT_LOG_LEVEL"
	EnvLogWarnStack = "STOREFRONT_LOG_WARN_STACK"

	EnvDBDSN      = "STOREFRONT_DB_DSN"
	EnvDBDriver   = "STOREFRONT_DB_DRIVER"
	EnvDBHost     = "STOREFRONT_DB_HOST"
	EnvDBPort     = "STOREFRONT_DB_PORT"
	EnvDBUser     = "STOREFRONT_DB_USER"
	EnvDBPassword = "STOREFRONT_DB_PASSWORD"
	EnvDBName     = "STOREFRONT_DB_NAME"
	EnvDBSSLMode  = "STOREFRONT_DB_SSLMODE"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvUseSQLite   = "STOREFRONT_USE_SQLITE"
	EnvAutoMigrate = "STOREFRONT_AUTO_MIGRATE"

	EnvCartGuestTTL       = "STOREFRONT_CART_GUEST_TTL"
	EnvCartCookieName     = "STOREFRONT_CART_COOKIE_NAME"
	EnvCartCookieSameSite = "STOREFRONT_CART_COOKIE_SAMESITE"

	EnvCheckoutRateLimit      = "STOREFRONT_CHECKOUT_RATE_LIMIT_PER_MINUTE"
	EnvCheckoutIdempotencyTTL = "STOREFRONT_CHECKOUT_IDEMPOTENCY_TTL"

	EnvStripeAPIKey         = "STOREFRONT_STRIPE_API_KEY"
	EnvStripeWebhookSecret  = "STOREFRONT_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv            = "STOREFRONT_STRIPE_ENV"
	EnvStripeCurrency       = "STOREFRONT_STRIPE_CURRENCY"
	EnvStripeTimeout        = "STOREFRONT_STRIPE_TIMEOUT"
	EnvStripeWebhookReplay  = "STOREFRONT_STRIPE_WEBHOOK_REPLAY_TTL"
	EnvWebhookSettlesStock  = "STOREFRONT_WEBHOOK_SETTLES_INVENTORY"
	EnvOrderNumberAttempts  = "STOREFRONT_ORDER_NUMBER_MAX_ATTEMPTS"
	EnvGCPProjectID         = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic    = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubInventoryTopic = "STOREFRONT_PUBSUB_INVENTORY_TOPIC"

	EnvOutboxBatchSize   = "STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollMS      = "STOREFRONT_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"

	EnvCronInterval       = "STOREFRONT_CRON_INTERVAL"
	EnvCronCartSweepBatch = "STOREFRONT_CRON_CART_SWEEP_BATCH"

	EnvCORSAllowedOrigins = "STOREFRONT_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
