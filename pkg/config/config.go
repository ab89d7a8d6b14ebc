package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "jerkyranks"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "JERKYRANKS_APP_ENV"
	EnvDBDSN  = "JERKYRANKS_DB_DSN"
	EnvDBHost = "JERKYRANKS_DB_HOST"
	EnvDBUser = "JERKYRANKS_DB_USER"
	EnvDBName = "JERKYRANKS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Catalog  CatalogConfig
	Queue    QueueConfig
	Cache    CacheConfig
	Streaks  StreaksConfig
	Realtime RealtimeConfig
	Operator OperatorConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Streaks.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"JERKYRANKS_APP_ENV" required:"true"`
	Port         string `envconfig:"JERKYRANKS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"JERKYRANKS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"JERKYRANKS_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"JERKYRANKS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"JERKYRANKS_DB_DSN"`
	Driver string `envconfig:"JERKYRANKS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"JERKYRANKS_DB_HOST"`
	LegacyPort     int    `envconfig:"JERKYRANKS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"JERKYRANKS_DB_USER"`
	LegacyPassword string `envconfig:"JERKYRANKS_DB_PASSWORD"`
	LegacyName     string `envconfig:"JERKYRANKS_DB_NAME"`
	LegacySSLMode  string `envconfig:"JERKYRANKS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"JERKYRANKS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"JERKYRANKS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"JERKYRANKS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JERKYRANKS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"JERKYRANKS_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"JERKYRANKS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"JERKYRANKS_REDIS_ADDR"`
	Password     string        `envconfig:"JERKYRANKS_REDIS_PASSWORD"`
	DB           int           `envconfig:"JERKYRANKS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JERKYRANKS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JERKYRANKS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JERKYRANKS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JERKYRANKS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JERKYRANKS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"JERKYRANKS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"JERKYRANKS_JWT_ISSUER" default:"jerkyranks"`
	ExpirationMinutes int    `envconfig:"JERKYRANKS_JWT_EXPIRATION_MINUTES" default:"10080"`
}

// SessionTTL returns the session token lifetime.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// CatalogConfig points at the commerce API that owns the product catalog.
type CatalogConfig struct {
	ShopDomain   string        `envconfig:"JERKYRANKS_CATALOG_SHOP_DOMAIN" required:"true"`
	AccessToken  string        `envconfig:"JERKYRANKS_CATALOG_ACCESS_TOKEN" required:"true"`
	APIVersion   string        `envconfig:"JERKYRANKS_CATALOG_API_VERSION" default:"2024-07"`
	PageSize     int           `envconfig:"JERKYRANKS_CATALOG_PAGE_SIZE" default:"250"`
	HTTPTimeout  time.Duration `envconfig:"JERKYRANKS_CATALOG_HTTP_TIMEOUT" default:"15s"`
	RefreshTTL   time.Duration `envconfig:"JERKYRANKS_CATALOG_REFRESH_TTL" default:"30m"`
	WaitDeadline time.Duration `envconfig:"JERKYRANKS_CATALOG_WAIT_DEADLINE" default:"30s"`
	RankableTag  string        `envconfig:"JERKYRANKS_CATALOG_RANKABLE_TAG" default:"rankable"`
}

type QueueConfig struct {
	WebhookWorkers   int           `envconfig:"JERKYRANKS_QUEUE_WEBHOOK_WORKERS" default:"4"`
	RecalcWorkers    int           `envconfig:"JERKYRANKS_QUEUE_RECALC_WORKERS" default:"2"`
	PollInterval     time.Duration `envconfig:"JERKYRANKS_QUEUE_POLL_INTERVAL" default:"500ms"`
	MaxAttempts      int           `envconfig:"JERKYRANKS_QUEUE_MAX_ATTEMPTS" default:"3"`
	BackoffBase      time.Duration `envconfig:"JERKYRANKS_QUEUE_BACKOFF_BASE" default:"1s"`
	CompletedMaxAge  time.Duration `envconfig:"JERKYRANKS_QUEUE_COMPLETED_MAX_AGE" default:"1h"`
	CompletedMaxKeep int           `envconfig:"JERKYRANKS_QUEUE_COMPLETED_MAX_KEEP" default:"100"`
	FailedMaxAge     time.Duration `envconfig:"JERKYRANKS_QUEUE_FAILED_MAX_AGE" default:"24h"`
	FailedMaxKeep    int           `envconfig:"JERKYRANKS_QUEUE_FAILED_MAX_KEEP" default:"1000"`
}

type CacheConfig struct {
	Backend            string        `envconfig:"JERKYRANKS_CACHE_BACKEND" default:"memory"`
	DefinitionsTTL     time.Duration `envconfig:"JERKYRANKS_CACHE_DEFINITIONS_TTL" default:"1h"`
	LeaderboardTTL     time.Duration `envconfig:"JERKYRANKS_CACHE_LEADERBOARD_TTL" default:"5m"`
	MetadataTTL        time.Duration `envconfig:"JERKYRANKS_CACHE_METADATA_TTL" default:"30m"`
	HomeStatsTTL       time.Duration `envconfig:"JERKYRANKS_CACHE_HOME_STATS_TTL" default:"5m"`
	RefreshWaitTimeout time.Duration `envconfig:"JERKYRANKS_CACHE_REFRESH_WAIT" default:"30s"`
}

type StreaksConfig struct {
	// Timezone decides which wall-clock date an activity lands on. Changing
	// it after launch rewrites streak history, so treat it as deploy-once.
	Timezone string `envconfig:"JERKYRANKS_STREAK_TIMEZONE" default:"UTC"`
}

func (s StreaksConfig) validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid streak timezone %q: %w", s.Timezone, err)
	}
	return nil
}

// Location resolves the configured streak timezone. Load validates it, so
// resolution failures fall back to UTC.
func (s StreaksConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type RealtimeConfig struct {
	PendingEventTTL  time.Duration `envconfig:"JERKYRANKS_REALTIME_PENDING_TTL" default:"5m"`
	WriteTimeout     time.Duration `envconfig:"JERKYRANKS_REALTIME_WRITE_TIMEOUT" default:"10s"`
	PongTimeout      time.Duration `envconfig:"JERKYRANKS_REALTIME_PONG_TIMEOUT" default:"60s"`
	SendBufferSize   int           `envconfig:"JERKYRANKS_REALTIME_SEND_BUFFER" default:"64"`
	ReadLimitBytes   int64         `envconfig:"JERKYRANKS_REALTIME_READ_LIMIT" default:"4096"`
	AllowedOriginAny bool          `envconfig:"JERKYRANKS_REALTIME_ALLOW_ANY_ORIGIN" default:"false"`
}

// OperatorConfig identifies the shop operator for employee overrides.
type OperatorConfig struct {
	EmailDomain string `envconfig:"JERKYRANKS_OPERATOR_EMAIL_DOMAIN" default:"jerkyranks.com"`
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
