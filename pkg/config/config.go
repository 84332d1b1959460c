package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthToken     AuthTokenConfig
	EmailConfirm  EmailConfirmConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Mail          MailConfig
	Outbox        OutboxConfig
	Import        ImportConfig
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
	Env          string `envconfig:"SHOPFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPFRONT_LOG_WARN_STACK" default:"false"`
	// PublicURL is used to build links in outgoing mail.
	PublicURL   string   `envconfig:"SHOPFRONT_PUBLIC_URL" default:"http://localhost:8080"`
	CORSOrigins []string `envconfig:"SHOPFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPFRONT_DB_DSN"`
	// Driver is postgres or sqlite. sqlite is meant for local runs only.
	Driver string `envconfig:"SHOPFRONT_DB_DRIVER" default:"postgres"`
	// SlowQuery logs statements slower than this at warn level; 0 disables.
	SlowQuery time.Duration `envconfig:"SHOPFRONT_DB_SLOW_QUERY" default:"200ms"`

	Host     string `envconfig:"SHOPFRONT_DB_HOST"`
	Port     int    `envconfig:"SHOPFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPFRONT_DB_USER"`
	Password string `envconfig:"SHOPFRONT_DB_PASSWORD"`
	Name     string `envconfig:"SHOPFRONT_DB_NAME"`
	SSLMode  string `envconfig:"SHOPFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	// KeyPrefix namespaces every key so several deployments can share a server.
	KeyPrefix string `envconfig:"SHOPFRONT_REDIS_KEY_PREFIX" default:"sf"`
}

// JWTConfig covers the admin panel access tokens only. Customer endpoints use
// persisted opaque tokens (see AuthTokenConfig).
type JWTConfig struct {
	Secret                 string `envconfig:"SHOPFRONT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SHOPFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SHOPFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"SHOPFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"1440"`
}

// RefreshTokenTTL returns the admin session TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPFRONT_ARGON_KEY_LEN" default:"32"`
	MinLength        int `envconfig:"SHOPFRONT_PASSWORD_MIN_LENGTH" default:"8"`
}

type AuthTokenConfig struct {
	KeyBytes int `envconfig:"SHOPFRONT_AUTH_TOKEN_KEY_BYTES" default:"20"`
}

type EmailConfirmConfig struct {
	TokenTTL time.Duration `envconfig:"SHOPFRONT_EMAIL_CONFIRM_TTL" default:"24h"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPFRONT_AUTO_MIGRATE" default:"false"`
}

type MailConfig struct {
	Host     string `envconfig:"SHOPFRONT_SMTP_HOST"`
	Port     int    `envconfig:"SHOPFRONT_SMTP_PORT" default:"587"`
	Username string `envconfig:"SHOPFRONT_SMTP_USERNAME"`
	Password string `envconfig:"SHOPFRONT_SMTP_PASSWORD"`
	From     string `envconfig:"SHOPFRONT_MAIL_FROM" default:"no-reply@shopfront.local"`
}

// Enabled reports whether an SMTP relay is configured.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// A failed send waits RetryBase, doubling per attempt up to RetryMax.
	RetryBase time.Duration `envconfig:"SHOPFRONT_OUTBOX_RETRY_BASE" default:"30s"`
	RetryMax  time.Duration `envconfig:"SHOPFRONT_OUTBOX_RETRY_MAX" default:"30m"`
	// ClaimTTL bounds how long a delivered event id is remembered in redis.
	ClaimTTL time.Duration `envconfig:"SHOPFRONT_OUTBOX_CLAIM_TTL" default:"72h"`
}

type ImportConfig struct {
	FetchTimeout time.Duration `envconfig:"SHOPFRONT_IMPORT_FETCH_TIMEOUT" default:"30s"`
	MaxBodyBytes int64         `envconfig:"SHOPFRONT_IMPORT_MAX_BODY_BYTES" default:"10485760"`
	LockTTL      time.Duration `envconfig:"SHOPFRONT_IMPORT_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	switch strings.ToLower(db.Driver) {
	case "", DBDriverPostgres:
		db.Driver = DBDriverPostgres
	case DBDriverSQLite:
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", db.Driver)
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dsnPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
