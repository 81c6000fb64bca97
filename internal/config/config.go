// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	History  HistoryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `envconfig:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s" validate:"min=0"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s" validate:"min=0"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight applies (default: 30s)
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`
}

// DatabaseConfig holds history database settings.
// An empty URL keeps import history in memory.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `envconfig:"DB_MAX_CONNS" default:"10" validate:"gt=0"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0"`

	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RedisConfig holds pending import session storage settings.
// An empty Addr keeps sessions in memory.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0" validate:"min=0"`

	// SessionTTL is how long a validated import waits to be applied (default: 24h)
	SessionTTL time.Duration `envconfig:"IMPORT_SESSION_TTL" default:"24h" validate:"gt=0"`
}

// CatalogConfig holds WooCommerce store settings.
type CatalogConfig struct {
	StoreURL       string `envconfig:"WC_STORE_URL" validate:"required,url"`
	ConsumerKey    string `envconfig:"WC_CONSUMER_KEY" validate:"required"`
	ConsumerSecret string `envconfig:"WC_CONSUMER_SECRET" validate:"required"`

	Timeout           time.Duration `envconfig:"WC_TIMEOUT" default:"30s" validate:"gt=0"`
	RequestsPerSecond float64       `envconfig:"WC_REQUESTS_PER_SECOND" default:"5" validate:"gt=0"`
	PageSize          int           `envconfig:"WC_PAGE_SIZE" default:"100" validate:"min=1,max=100"`
}

// ImportConfig holds import processing settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `envconfig:"IMPORT_MAX_FILE_SIZE" default:"10485760" validate:"gt=0"`

	// MaxConcurrent is the number of applies that may run at once (default: 1)
	MaxConcurrent int `envconfig:"IMPORT_MAX_CONCURRENT" default:"1" validate:"gt=0"`

	// MaxWaitTime is how long to wait for an apply slot (default: 5s)
	MaxWaitTime time.Duration `envconfig:"IMPORT_MAX_WAIT_TIME" default:"5s" validate:"gt=0"`

	// ApplyTimeout bounds a single apply operation (default: 10m)
	ApplyTimeout time.Duration `envconfig:"IMPORT_APPLY_TIMEOUT" default:"10m" validate:"gt=0"`

	// Workers is the number of concurrent catalog writes per apply (default: 4)
	Workers int `envconfig:"IMPORT_WORKERS" default:"4" validate:"min=1,max=32"`

	// SKUMatch selects exact or case-folded SKU lookup (default: exact)
	SKUMatch string `envconfig:"IMPORT_SKU_MATCH" default:"exact" validate:"oneof=exact fold"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `envconfig:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100" validate:"min=0"`

	// ImportLimit is requests per minute for import endpoints (default: 10)
	ImportLimit int `envconfig:"RATE_LIMIT_IMPORT" default:"10" validate:"min=0"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES" validate:"dive,cidr|ip"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `envconfig:"API_KEYS"`

	// RequireAPIKey rejects /api requests without a valid key (default: false)
	RequireAPIKey bool `envconfig:"REQUIRE_API_KEY" default:"false"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `envconfig:"SECURITY_ENABLE_CSP" default:"true"`

	// Development relaxes HTTPS-only headers (default: false)
	Development bool `envconfig:"SECURITY_DEVELOPMENT" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`

	// Format is the log format: text or json (default: text)
	Format string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json TEXT JSON"`
}

// HistoryConfig holds import history retention settings.
type HistoryConfig struct {
	// RetentionDays is how long finished runs are kept (default: 90)
	RetentionDays int `envconfig:"HISTORY_RETENTION_DAYS" default:"90" validate:"gt=0"`

	// CheckInterval is how often the retention job runs (default: 24h)
	CheckInterval time.Duration `envconfig:"HISTORY_CHECK_INTERVAL" default:"24h" validate:"gt=0"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
