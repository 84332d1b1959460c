package config

// EnvPrefix is handed to envconfig; every field carries its full name anyway.
const EnvPrefix = "SHOPFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "SHOPFRONT_APP_ENV"
	EnvPort      = "SHOPFRONT_APP_PORT"
	EnvLogLevel  = "SHOPFRONT_LOG_LEVEL"
	EnvDBDSN     = "SHOPFRONT_DB_DSN"
	EnvDBHost    = "SHOPFRONT_DB_HOST"
	EnvDBPort    = "SHOPFRONT_DB_PORT"
	EnvDBUser    = "SHOPFRONT_DB_USER"
	EnvDBPass    = "SHOPFRONT_DB_PASSWORD"
	EnvDBName    = "SHOPFRONT_DB_NAME"
	EnvRedisURL  = "SHOPFRONT_REDIS_URL"
	EnvJWTSecret = "SHOPFRONT_JWT_SECRET"
	EnvJWTIssuer = "SHOPFRONT_JWT_ISSUER"
	EnvJWTExpMin = "SHOPFRONT_JWT_EXPIRATION_MINUTES"
	EnvSMTPHost  = "SHOPFRONT_SMTP_HOST"
	EnvConfirmTT = "SHOPFRONT_EMAIL_CONFIRM_TTL"
)

var dsnPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
