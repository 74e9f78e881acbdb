package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "MINELANCE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MINELANCE_APP_ENV"
	EnvPort     = "MINELANCE_APP_PORT"
	EnvLogLevel = "MINELANCE_LOG_LEVEL"

	EnvDBDSN  = "MINELANCE_DB_DSN"
	EnvDBHost = "MINELANCE_DB_HOST"
	EnvDBUser = "MINELANCE_DB_USER"
	EnvDBName = "MINELANCE_DB_NAME"

	EnvRedisURL = "MINELANCE_REDIS_URL"

	EnvJWTSecret = "MINELANCE_JWT_SECRET"
	EnvJWTIssuer = "MINELANCE_JWT_ISSUER"

	EnvPaymentWebhookSecret = "MINELANCE_PAYMENT_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
