package config

// EnvPrefix is passed to envconfig; individual fields carry fully-qualified
// names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Canonical env var names, shared with tests and deploy manifests.
const (
	EnvAppEnv    = "SPONZA_APP_ENV"
	EnvPort      = "SPONZA_APP_PORT"
	EnvDBDSN     = "SPONZA_DB_DSN"
	EnvDBHost    = "SPONZA_DB_HOST"
	EnvDBUser    = "SPONZA_DB_USER"
	EnvDBName    = "SPONZA_DB_NAME"
	EnvRedisURL  = "SPONZA_REDIS_URL"
	EnvJWTSecret = "SPONZA_JWT_SECRET"
	EnvJWTIssuer = "SPONZA_JWT_ISSUER"
	EnvJWTExp    = "SPONZA_JWT_EXPIRATION_MINUTES"

	EnvGatewayKeyID         = "SPONZA_GATEWAY_KEY_ID"
	EnvGatewayKeySecret     = "SPONZA_GATEWAY_KEY_SECRET"
	EnvGatewayWebhookSecret = "SPONZA_GATEWAY_WEBHOOK_SECRET"

	EnvGCPProjectID           = "SPONZA_GCP_PROJECT_ID"
	EnvPubSubDomainTopic      = "SPONZA_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationSub = "SPONZA_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
