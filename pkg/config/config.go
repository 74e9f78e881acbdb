package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Payment      PaymentConfig
	RateLimit    RateLimitConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MINELANCE_APP_ENV" required:"true"`
	Port         string   `envconfig:"MINELANCE_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"MINELANCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MINELANCE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MINELANCE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN string `envconfig:"MINELANCE_DB_DSN"`

	LegacyHost     string `envconfig:"MINELANCE_DB_HOST"`
	LegacyPort     int    `envconfig:"MINELANCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MINELANCE_DB_USER"`
	LegacyPassword string `envconfig:"MINELANCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MINELANCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MINELANCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MINELANCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MINELANCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MINELANCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MINELANCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MINELANCE_REDIS_URL"`
	Address      string        `envconfig:"MINELANCE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"MINELANCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MINELANCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MINELANCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MINELANCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MINELANCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MINELANCE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"MINELANCE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// JWTConfig holds the shared secret used to verify tokens issued by the
// identity provider. Tokens are never minted by the API.
type JWTConfig struct {
	Secret string `envconfig:"MINELANCE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"MINELANCE_JWT_ISSUER" required:"true"`
}

type PaymentConfig struct {
	WebhookSecret   string        `envconfig:"MINELANCE_PAYMENT_WEBHOOK_SECRET" required:"true"`
	SignatureHeader string        `envconfig:"MINELANCE_PAYMENT_SIGNATURE_HEADER" default:"X-Payment-Signature"`
	IdempotencyTTL  time.Duration `envconfig:"MINELANCE_PAYMENT_IDEMPOTENCY_TTL" default:"720h"`
}

type RateLimitConfig struct {
	ReportWindow time.Duration `envconfig:"MINELANCE_RATE_LIMIT_REPORT_WINDOW" default:"1h"`
	ReportLimit  int           `envconfig:"MINELANCE_RATE_LIMIT_REPORT_LIMIT" default:"10"`
	OfferWindow  time.Duration `envconfig:"MINELANCE_RATE_LIMIT_OFFER_WINDOW" default:"1h"`
	OfferLimit   int           `envconfig:"MINELANCE_RATE_LIMIT_OFFER_LIMIT" default:"30"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"MINELANCE_CRON_INTERVAL" default:"24h"`
	NotificationRetention int           `envconfig:"MINELANCE_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MINELANCE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
