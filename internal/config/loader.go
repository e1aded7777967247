package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a caller-supplied variable source. Empty values
// count as unset.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	if err := fill(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error. Only main should use it.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

var durationType = reflect.TypeOf(time.Duration(0))

// fill walks the struct behind v, descending into nested groups, and sets
// every field that carries an env tag.
func fill(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := fill(fv, lookup); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, err := resolve(sf, lookup)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		if err := assign(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// resolve returns the env value for a field: primary name, then envAlt,
// then the default tag.
func resolve(sf reflect.StructField, lookup LookupFunc) (string, error) {
	for _, name := range []string{sf.Tag.Get("env"), sf.Tag.Get("envAlt")} {
		if name == "" {
			continue
		}
		if v, ok := lookup(name); ok && v != "" {
			return v, nil
		}
	}
	if sf.Tag.Get("required") == "true" {
		return "", fmt.Errorf("required environment variable %s is not set", sf.Tag.Get("env"))
	}
	return sf.Tag.Get("default"), nil
}

func assign(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", fv.Type().Elem().Kind())
		}
		fv.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type: %s", fv.Kind())
	}
	return nil
}

// splitList splits a comma-separated value, dropping blank items.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// problems accumulates validation failures so Validate reports all of them.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func (p *problems) positive(name string, v int64) {
	p.check(v > 0, "%s must be positive", name)
}

func (p *problems) oneOf(name, value string, allowed ...string) {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	*p = append(*p, fmt.Sprintf("%s (%q) must be one of: %s", name, value, strings.Join(allowed, ", ")))
}

// Validate checks the configuration and reports every failure at once.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.positive("SERVER_SHUTDOWN_TIMEOUT", int64(c.Server.ShutdownTimeout))

	// Pool sizes only matter when the audit trail is enabled.
	if c.Database.URL != "" {
		p.positive("DB_MAX_CONNS", int64(c.Database.MaxConns))
		p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
		p.check(c.Database.MaxConns >= c.Database.MinConns,
			"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	p.positive("SESSION_TTL", int64(c.Session.TTL))
	p.positive("SESSION_SWEEP_INTERVAL", int64(c.Session.SweepInterval))

	p.positive("UPLOAD_MAX_FILE_SIZE", c.Upload.MaxFileSize)
	p.positive("UPLOAD_PREVIEW_ROWS", int64(c.Upload.PreviewRows))
	p.positive("UPLOAD_TIMEOUT", int64(c.Upload.Timeout))

	p.positive("TRANSFORM_MATCH_TIMEOUT", int64(c.Transform.MatchTimeout))
	p.positive("TRANSFORM_CONCURRENCY", int64(c.Transform.Concurrency))
	p.positive("TRANSFORM_MAX_CONCURRENT", int64(c.Transform.MaxConcurrent))
	p.positive("TRANSFORM_MAX_WAIT_TIME", int64(c.Transform.MaxWaitTime))

	p.oneOf("PLANNER_PROVIDER", c.Planner.Provider, "heuristic", "openai")
	if strings.EqualFold(c.Planner.Provider, "openai") {
		p.check(c.Planner.APIKey != "", "PLANNER_API_KEY is required when PLANNER_PROVIDER is openai")
		p.check(c.Planner.Model != "", "PLANNER_MODEL is required when PLANNER_PROVIDER is openai")
	}
	p.check(c.Planner.MaxCandidates >= 1 && c.Planner.MaxCandidates <= 3,
		"PLANNER_MAX_CANDIDATES (%d) must be 1-3", c.Planner.MaxCandidates)
	p.positive("PLANNER_MAX_ATTEMPTS", int64(c.Planner.MaxAttempts))

	if c.Rate.Enabled {
		p.check(c.Rate.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		p.check(c.Rate.UploadLimit > 0, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one key or disable auth")

	p.oneOf("LOG_LEVEL", c.Logging.Level, "debug", "info", "warn", "error")
	p.oneOf("LOG_FORMAT", c.Logging.Format, "text", "json")

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String renders the configuration for logs with connection strings and
// keys masked.
func (c *Config) String() string {
	groups := []string{
		fmt.Sprintf("Server: {Addr: %q}", c.Server.Addr()),
		fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}", mask(c.Database.URL), c.Database.MaxConns, c.Database.MinConns),
		fmt.Sprintf("Session: {RedisURL: %s, TTL: %s}", mask(c.Session.RedisURL), c.Session.TTL),
		fmt.Sprintf("Upload: {MaxFileSize: %d, PreviewRows: %d}", c.Upload.MaxFileSize, c.Upload.PreviewRows),
		fmt.Sprintf("Transform: {MatchTimeout: %s, Concurrency: %d, MaxConcurrent: %d}",
			c.Transform.MatchTimeout, c.Transform.Concurrency, c.Transform.MaxConcurrent),
		fmt.Sprintf("Planner: {Provider: %q, Model: %q, APIKey: %s}", c.Planner.Provider, c.Planner.Model, mask(c.Planner.APIKey)),
		fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}", c.Rate.Enabled, c.Rate.RequestsPerMinute),
		fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format),
	}
	return "Config{" + strings.Join(groups, ", ") + "}"
}

// mask hides a secret while still showing whether it is set.
func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
