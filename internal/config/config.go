// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Upload    UploadConfig
	Transform TransformConfig
	Planner   PlannerConfig
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

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds audit database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the audit trail.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies embedded migrations on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// SessionConfig holds per-session table storage settings.
type SessionConfig struct {
	// RedisURL selects the Redis store, e.g. redis://localhost:6379/0.
	// Empty keeps tables in process memory.
	RedisURL string `env:"REDIS_URL"`

	// TTL is how long an idle session keeps its table (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// SweepInterval is how often expired in-memory sessions are dropped (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`
}

// UploadConfig holds file upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// PreviewRows is how many rows responses and the HTML preview include (default: 100)
	PreviewRows int `env:"UPLOAD_PREVIEW_ROWS" default:"100"`

	// Timeout is the maximum duration for a single upload operation (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`
}

// TransformConfig holds candidate evaluation settings.
type TransformConfig struct {
	// MatchTimeout bounds one cell substitution across all its matches (default: 250ms)
	MatchTimeout time.Duration `env:"TRANSFORM_MATCH_TIMEOUT" default:"250ms"`

	// Concurrency is how many candidates are evaluated at once (default: 4)
	Concurrency int `env:"TRANSFORM_CONCURRENCY" default:"4"`

	// MaxConcurrent is the maximum number of transform requests in flight (default: 8)
	MaxConcurrent int `env:"TRANSFORM_MAX_CONCURRENT" default:"8"`

	// MaxWaitTime is how long a request waits for a transform slot (default: 30s)
	MaxWaitTime time.Duration `env:"TRANSFORM_MAX_WAIT_TIME" default:"30s"`
}

// PlannerConfig holds candidate planner settings.
type PlannerConfig struct {
	// Provider is "heuristic" or "openai" (default: heuristic)
	Provider string `env:"PLANNER_PROVIDER" default:"heuristic"`

	// BaseURL points at any OpenAI-compatible endpoint. Empty uses the SDK default.
	BaseURL string `env:"PLANNER_BASE_URL" envAlt:"OPENAI_BASE_URL"`

	// APIKey authenticates with the provider
	APIKey string `env:"PLANNER_API_KEY" envAlt:"OPENAI_API_KEY"`

	// Model is the chat model name (default: gpt-4o-mini)
	Model string `env:"PLANNER_MODEL" default:"gpt-4o-mini"`

	// Temperature is the sampling temperature (default: 0.1)
	Temperature float64 `env:"PLANNER_TEMPERATURE" default:"0.1"`

	// MaxCandidates caps how many candidates are requested, 1-3 (default: 3)
	MaxCandidates int `env:"PLANNER_MAX_CANDIDATES" default:"3"`

	// MaxAttempts is how many times a failed planner call is tried (default: 3)
	MaxAttempts int `env:"PLANNER_MAX_ATTEMPTS" default:"3"`

	// Timeout bounds one planner call (default: 30s)
	Timeout time.Duration `env:"PLANNER_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload and transform endpoints (default: 20)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}
