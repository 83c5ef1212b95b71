// Package config provides centralized configuration management for the registry.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Storage drivers understood by the commands.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Import    ImportConfig
	Numbering NumberingConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"15m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests. Confirm runs a full
	// import inside one request, so this is generous (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StorageConfig selects the store implementation.
type StorageConfig struct {
	// Driver is "postgres" or "memory" (default: postgres)
	Driver string `env:"STORAGE_DRIVER" default:"postgres"`
}

// ImportConfig holds spreadsheet import and export settings.
type ImportConfig struct {
	// TempDir is the sandbox root for uploaded workbooks (default: tmp)
	TempDir string `env:"IMPORT_TEMP_DIR" default:"tmp"`

	// MaxFileSize is the maximum allowed upload size in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// BatchSize is the number of entities flushed per store round trip (default: 250)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"250"`

	// LookupChunkSize bounds the keys sent per existence query (default: 500)
	LookupChunkSize int `env:"IMPORT_LOOKUP_CHUNK_SIZE" default:"500"`

	// BlankRowLimit stops a sheet after this many consecutive blank rows (default: 200)
	BlankRowLimit int `env:"IMPORT_BLANK_ROW_LIMIT" default:"200"`

	// SampleLimit caps skip samples and warning lists in results (default: 20)
	SampleLimit int `env:"IMPORT_SAMPLE_LIMIT" default:"20"`

	// PreviewRows is the number of records per sheet shown in a preview (default: 10)
	PreviewRows int `env:"IMPORT_PREVIEW_ROWS" default:"10"`

	// CodeLength is the length of generated guest keys (default: 6)
	CodeLength int `env:"IMPORT_CODE_LENGTH" default:"6"`

	// MaxConcurrent is the maximum number of imports running at once (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single import (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// UploadMaxAge is how long an unconfirmed upload is kept (default: 24h)
	UploadMaxAge time.Duration `env:"IMPORT_UPLOAD_MAX_AGE" default:"24h"`

	// CleanupInterval is how often stale uploads are removed (default: 1h)
	CleanupInterval time.Duration `env:"IMPORT_CLEANUP_INTERVAL" default:"1h"`
}

// NumberingConfig holds guest number generation settings.
type NumberingConfig struct {
	// DefaultPattern is used when the guestNumberFormat setting is absent
	DefaultPattern string `env:"NUMBER_DEFAULT_PATTERN" default:"GT-YYYY-NNNN"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the /api routes with the X-API-Key header
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
