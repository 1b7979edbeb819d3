package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Platform      PlatformConfig
	Paylink       PaylinkConfig
	Cron          CronConfig
	Notifications NotificationsConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Platform.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RIDELINK_APP_ENV" required:"true"`
	Port         string `envconfig:"RIDELINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RIDELINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RIDELINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RIDELINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RIDELINK_DB_DSN"`
	Driver string `envconfig:"RIDELINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RIDELINK_DB_HOST"`
	LegacyPort     int    `envconfig:"RIDELINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RIDELINK_DB_USER"`
	LegacyPassword string `envconfig:"RIDELINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"RIDELINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"RIDELINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RIDELINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RIDELINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RIDELINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RIDELINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RIDELINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RIDELINK_REDIS_ADDR"`
	Password     string        `envconfig:"RIDELINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"RIDELINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RIDELINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RIDELINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RIDELINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RIDELINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RIDELINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RIDELINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RIDELINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RIDELINK_JWT_EXPIRATION_MINUTES" required:"true"`
}

// PlatformConfig identifies the operator's wallet and the fee policy.
// The platform account is configuration-resolved, never a hardcoded id.
type PlatformConfig struct {
	AccountID        string `envconfig:"RIDELINK_PLATFORM_ACCOUNT_ID" required:"true"`
	DriverShareBps   int    `envconfig:"RIDELINK_DRIVER_SHARE_BPS" default:"9000"`
	MinimumFareCents int64  `envconfig:"RIDELINK_MINIMUM_FARE_CENTS" default:"50"`
}

func (p PlatformConfig) Validate() error {
	if _, err := uuid.Parse(p.AccountID); err != nil {
		return fmt.Errorf("%s must be a uuid: %w", EnvPlatformAccountID, err)
	}
	if p.DriverShareBps <= 0 || p.DriverShareBps >= 10000 {
		return fmt.Errorf("%s must be between 1 and 9999 basis points", EnvDriverShareBps)
	}
	if p.MinimumFareCents <= 0 {
		return fmt.Errorf("%s must be positive", EnvMinimumFareCents)
	}
	return nil
}

// PlatformAccountID returns the parsed platform wallet id. Validate ran at Load.
func (p PlatformConfig) PlatformAccountID() uuid.UUID {
	id, _ := uuid.Parse(p.AccountID)
	return id
}

type PaylinkConfig struct {
	AccessToken   string        `envconfig:"RIDELINK_SQUARE_ACCESS_TOKEN"`
	LocationID    string        `envconfig:"RIDELINK_SQUARE_LOCATION_ID"`
	WebhookSecret string        `envconfig:"RIDELINK_SQUARE_WEBHOOK_SECRET"`
	Env           string        `envconfig:"RIDELINK_SQUARE_ENV" default:"sandbox"`
	LinkTTL       time.Duration `envconfig:"RIDELINK_PAYLINK_TTL" default:"24h"`
	EventDedupTTL time.Duration `envconfig:"RIDELINK_PAYLINK_EVENT_DEDUP_TTL" default:"24h"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (p PaylinkConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"RIDELINK_CRON_INTERVAL" default:"5m"`
	ReconcileBatch   int           `envconfig:"RIDELINK_CRON_RECONCILE_BATCH" default:"50"`
	StaleLinkMaxAge  time.Duration `envconfig:"RIDELINK_CRON_STALE_LINK_MAX_AGE" default:"24h"`
	LockTTL          time.Duration `envconfig:"RIDELINK_CRON_LOCK_TTL" default:"10m"`
	ReconcileEnabled bool          `envconfig:"RIDELINK_CRON_RECONCILE_ENABLED" default:"true"`
}

type NotificationsConfig struct {
	SenderID string `envconfig:"RIDELINK_SMS_SENDER_ID" default:"RideLink"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RIDELINK_AUTO_MIGRATE" default:"false"`
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
