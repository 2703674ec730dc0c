package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix is the envconfig namespace for every setting.
const EnvPrefix = "CARTENGINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	Reservation  ReservationConfig
	Sweep        SweepConfig
	Abuse        AbuseConfig
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
	Env          string `envconfig:"CARTENGINE_APP_ENV" required:"true"`
	Port         string `envconfig:"CARTENGINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CARTENGINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARTENGINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CARTENGINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CARTENGINE_DB_DSN"`
	Driver string `envconfig:"CARTENGINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CARTENGINE_DB_HOST"`
	Port     int    `envconfig:"CARTENGINE_DB_PORT" default:"5432"`
	User     string `envconfig:"CARTENGINE_DB_USER"`
	Password string `envconfig:"CARTENGINE_DB_PASSWORD"`
	Name     string `envconfig:"CARTENGINE_DB_NAME"`
	SSLMode  string `envconfig:"CARTENGINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARTENGINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTENGINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTENGINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTENGINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTENGINE_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CARTENGINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTENGINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTENGINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTENGINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTENGINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTENGINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTENGINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CartConfig carries the business constants enforced by the integrity guard
// and the lifecycle manager.
type CartConfig struct {
	GuestTTL        time.Duration `envconfig:"CARTENGINE_CART_GUEST_TTL" default:"24h"`
	UserTTL         time.Duration `envconfig:"CARTENGINE_CART_USER_TTL" default:"720h"`
	MaxItems        int           `envconfig:"CARTENGINE_CART_MAX_ITEMS" default:"50"`
	MaxQtyPerItem   int           `envconfig:"CARTENGINE_CART_MAX_QTY_PER_ITEM" default:"100"`
	MaxSellers      int           `envconfig:"CARTENGINE_CART_MAX_SELLERS" default:"10"`
	MaxCartValue    string        `envconfig:"CARTENGINE_CART_MAX_VALUE" default:"50000"`
	ConflictRetries int           `envconfig:"CARTENGINE_CART_CONFLICT_RETRIES" default:"3"`
	AbandonedAfter  time.Duration `envconfig:"CARTENGINE_CART_ABANDONED_AFTER" default:"168h"`
	DefaultCurrency string        `envconfig:"CARTENGINE_CART_CURRENCY" default:"USD"`
}

// MaxValue parses the configured cart value ceiling.
func (c CartConfig) MaxValue() decimal.Decimal {
	value, err := decimal.NewFromString(c.MaxCartValue)
	if err != nil {
		return decimal.NewFromInt(50000)
	}
	return value
}

type ReservationConfig struct {
	SoftTTL time.Duration `envconfig:"CARTENGINE_RESERVATION_SOFT_TTL" default:"30m"`
}

type SweepConfig struct {
	Interval time.Duration `envconfig:"CARTENGINE_SWEEP_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"CARTENGINE_SWEEP_LOCK_TTL" default:"4m"`
}

// AbuseConfig tunes the best-effort abuse monitor.
type AbuseConfig struct {
	CartCreateWindow    time.Duration `envconfig:"CARTENGINE_ABUSE_CART_CREATE_WINDOW" default:"10m"`
	CartCreateLimit     int           `envconfig:"CARTENGINE_ABUSE_CART_CREATE_LIMIT" default:"10"`
	InvalidPromoWindow  time.Duration `envconfig:"CARTENGINE_ABUSE_INVALID_PROMO_WINDOW" default:"15m"`
	InvalidPromoLimit   int           `envconfig:"CARTENGINE_ABUSE_INVALID_PROMO_LIMIT" default:"10"`
	HoardingThreshold   int           `envconfig:"CARTENGINE_ABUSE_HOARDING_THRESHOLD" default:"500"`
	RestrictionDuration time.Duration `envconfig:"CARTENGINE_ABUSE_RESTRICTION_TTL" default:"30m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARTENGINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARTENGINE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		"CARTENGINE_DB_HOST": db.Host,
		"CARTENGINE_DB_USER": db.User,
		"CARTENGINE_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either CARTENGINE_DB_DSN or %s are required", strings.Join(missing, ", "))
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
