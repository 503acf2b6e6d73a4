package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config aggregates all runtime settings.
type Config struct {
	App      AppConfig      `envPrefix:"OAUTH_"`
	HTTP     HTTPConfig     `envPrefix:"OAUTH_HTTP_"`
	Database DatabaseConfig `envPrefix:"OAUTH_DB_"`
	Redis    RedisConfig    `envPrefix:"OAUTH_REDIS_"`
	Provider ProviderConfig `envPrefix:"OAUTH_PROVIDER_"`
	Security SecurityConfig `envPrefix:"OAUTH_SECURITY_"`
}

type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"oauth-provider"`
}

type HTTPConfig struct {
	Host              string        `env:"HOST" envDefault:"0.0.0.0"`
	Port              int           `env:"PORT" envDefault:"4102"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"25s"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int32         `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int32         `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
}

type RedisConfig struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Addr      string `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	EnableTLS bool   `env:"ENABLE_TLS" envDefault:"false"`
	Namespace string `env:"NAMESPACE" envDefault:"oauth"`

	PoolSize    int           `env:"POOL_SIZE" envDefault:"10"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"3s"`
	OpTimeout   time.Duration `env:"OP_TIMEOUT" envDefault:"500ms"`
}

// ProviderConfig controls the OAuth2 provider itself.
type ProviderConfig struct {
	// PathPrefix is mounted in front of every /oauth route.
	PathPrefix       string        `env:"PATH_PREFIX" envDefault:""`
	AuthorizationTTL time.Duration `env:"AUTHORIZATION_TTL" envDefault:"1h"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"2160h"`
	AdminUserIDs     []string      `env:"ADMIN_USER_IDS" envSeparator:","`
	TokenRateLimit   int           `env:"TOKEN_RATE_LIMIT" envDefault:"120"`
	TokenRateWindow  time.Duration `env:"TOKEN_RATE_WINDOW" envDefault:"1m"`
}

type SecurityConfig struct {
	// SessionSecret verifies host-issued session JWTs.
	SessionSecret string        `env:"SESSION_SECRET"`
	ConsentSecret string        `env:"CONSENT_SECRET"`
	ConsentTTL    time.Duration `env:"CONSENT_TTL" envDefault:"10m"`
}

// Load parses environment variables into Config and performs validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase parses the environment for tools that only need storage.
func LoadDatabase() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("OAUTH_DB_URL is required")
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("OAUTH_DB_URL is required")
	}
	if c.Security.SessionSecret == "" || c.Security.ConsentSecret == "" {
		return fmt.Errorf("OAUTH_SECURITY_SESSION_SECRET and OAUTH_SECURITY_CONSENT_SECRET are required")
	}
	if c.Provider.AuthorizationTTL <= 0 || c.Provider.TokenTTL <= 0 {
		return fmt.Errorf("provider lifetimes must be positive")
	}
	return nil
}

// IsAdmin reports whether userID is listed in OAUTH_PROVIDER_ADMIN_USER_IDS.
func (p ProviderConfig) IsAdmin(userID string) bool {
	for _, id := range p.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
