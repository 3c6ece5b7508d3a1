package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	Port     string `env:"PORT,      default=4020"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth     AuthConfig
	Store    StoreConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Realtime RealtimeConfig
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET, required"`
	CookieName string        `env:"COOKIE_NAME, default=qbridge_iam"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,   default=168h"`
}

type StoreConfig struct {
	Driver     string `env:"STORE_DRIVER, default=mongo"`
	SQLitePath string `env:"SQLITE_PATH,  default=chat.db"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=qbridge_chat"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type RealtimeConfig struct {
	AllowedOrigins  []string      `env:"DASHBOARD_ORIGIN,   default=http://localhost:5173"`
	DispatchWorkers int           `env:"DISPATCH_WORKERS,   default=8"`
	OutboundBuffer  int           `env:"OUTBOUND_BUFFER,    default=64"`
	PingInterval    time.Duration `env:"WS_PING_INTERVAL,   default=30s"`
	MaxFrameBytes   int64         `env:"WS_MAX_FRAME_BYTES, default=16384"`
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration from l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverSQLite, c.Store.Driver)
	}
	if c.Realtime.DispatchWorkers <= 0 {
		return errors.New("DISPATCH_WORKERS must be positive")
	}
	if c.Realtime.OutboundBuffer <= 0 {
		return errors.New("OUTBOUND_BUFFER must be positive")
	}
	return nil
}
