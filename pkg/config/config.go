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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Gateway      GatewayConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"SPONZA_APP_ENV" required:"true"`
	Port         string `envconfig:"SPONZA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SPONZA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SPONZA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SPONZA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SPONZA_DB_DSN"`
	Driver string `envconfig:"SPONZA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SPONZA_DB_HOST"`
	LegacyPort     int    `envconfig:"SPONZA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SPONZA_DB_USER"`
	LegacyPassword string `envconfig:"SPONZA_DB_PASSWORD"`
	LegacyName     string `envconfig:"SPONZA_DB_NAME"`
	LegacySSLMode  string `envconfig:"SPONZA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SPONZA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SPONZA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SPONZA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SPONZA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SPONZA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SPONZA_REDIS_ADDR"`
	Password     string        `envconfig:"SPONZA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SPONZA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SPONZA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SPONZA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SPONZA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SPONZA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SPONZA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SPONZA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SPONZA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SPONZA_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SPONZA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SPONZA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SPONZA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SPONZA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SPONZA_ARGON_KEY_LEN" default:"32"`
}

// GatewayConfig holds payment-provider credentials. WebhookSecret signs
// gateway callbacks; KeyID/KeySecret authenticate outbound API calls.
type GatewayConfig struct {
	BaseURL       string        `envconfig:"SPONZA_GATEWAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	KeyID         string        `envconfig:"SPONZA_GATEWAY_KEY_ID"`
	KeySecret     string        `envconfig:"SPONZA_GATEWAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"SPONZA_GATEWAY_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"SPONZA_GATEWAY_TIMEOUT" default:"10s"`
	MaxRetries    int           `envconfig:"SPONZA_GATEWAY_MAX_RETRIES" default:"3"`
	Currency      string        `envconfig:"SPONZA_GATEWAY_CURRENCY" default:"INR"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SPONZA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SPONZA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SPONZA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SPONZA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"SPONZA_PUBSUB_DOMAIN_TOPIC" default:"sponza-domain-events"`
	NotificationSubscription string `envconfig:"SPONZA_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SPONZA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SPONZA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SPONZA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"SPONZA_CRON_INTERVAL" default:"1h"`
	StaleTransactionTTL   time.Duration `envconfig:"SPONZA_CRON_STALE_TRANSACTION_TTL" default:"72h"`
	NotificationRetention time.Duration `envconfig:"SPONZA_CRON_NOTIFICATION_RETENTION" default:"2160h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
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
