// Package config loads the settings shared by sessiond and sessionctl from the
// environment and an optional .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every failed validation check.
var ErrInvalidConfig = errors.New("validate config")

// ParseError reports a setting that could not be decoded.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string { return "parse " + e.Key + ": " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTIssuer       string
	JWTAudience     string
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	SessionTTL      time.Duration

	APIRateLimitPerMin int

	GeoBaseURL      string
	GeoTimeout      time.Duration
	GeoCacheTTL     time.Duration
	GeoRateLimitRPS float64

	AuthBaseURL string
	AuthToken   string
	AuthTimeout time.Duration

	BulkRevokeConcurrency int
	MapBaseURL            string

	LogLevel string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration

	ShutdownTimeout time.Duration
}

// raw mirrors the environment keys before durations are parsed.
type raw struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTIssuer       string `mapstructure:"JWT_ISSUER"`
	JWTAudience     string `mapstructure:"JWT_AUDIENCE"`
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTAccessTTL    string `mapstructure:"JWT_ACCESS_TTL"`
	SessionTTL      string `mapstructure:"SESSION_TTL"`

	APIRateLimitPerMin int `mapstructure:"API_RATE_LIMIT_RPM"`

	GeoBaseURL      string  `mapstructure:"GEO_BASE_URL"`
	GeoTimeout      string  `mapstructure:"GEO_TIMEOUT"`
	GeoCacheTTL     string  `mapstructure:"GEO_CACHE_TTL"`
	GeoRateLimitRPS float64 `mapstructure:"GEO_RATE_LIMIT_RPS"`

	AuthBaseURL string `mapstructure:"AUTH_BASE_URL"`
	AuthToken   string `mapstructure:"AUTH_TOKEN"`
	AuthTimeout string `mapstructure:"AUTH_TIMEOUT"`

	BulkRevokeConcurrency int    `mapstructure:"BULK_REVOKE_CONCURRENCY"`
	MapBaseURL            string `mapstructure:"MAP_BASE_URL"`

	LogLevel string `mapstructure:"LOG_LEVEL"`

	OTELServiceName           string `mapstructure:"OTEL_SERVICE_NAME"`
	OTELEnvironment           string `mapstructure:"OTEL_ENVIRONMENT"`
	OTELExporterOTLPEndpoint  string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELExporterOTLPInsecure  bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELMetricsEnabled        bool   `mapstructure:"OTEL_METRICS_ENABLED"`
	OTELTracingEnabled        bool   `mapstructure:"OTEL_TRACING_ENABLED"`
	OTELLogsEnabled           bool   `mapstructure:"OTEL_LOGS_ENABLED"`
	OTELMetricsExportInterval string `mapstructure:"OTEL_METRICS_EXPORT_INTERVAL"`

	ShutdownTimeout string `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"APP_ENV":                      "development",
	"HTTP_ADDR":                    ":8080",
	"DATABASE_URL":                 "sqlite:sessiond.db",
	"REDIS_ADDR":                   "",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"JWT_ISSUER":                   "sessiond",
	"JWT_AUDIENCE":                 "session-console",
	"JWT_ACCESS_SECRET":            "",
	"JWT_ACCESS_TTL":               "15m",
	"SESSION_TTL":                  "720h",
	"API_RATE_LIMIT_RPM":           120,
	"GEO_BASE_URL":                 "https://ipwho.is",
	"GEO_TIMEOUT":                  "5s",
	"GEO_CACHE_TTL":                "1h",
	"GEO_RATE_LIMIT_RPS":           1.0,
	"AUTH_BASE_URL":                "http://localhost:8080",
	"AUTH_TOKEN":                   "",
	"AUTH_TIMEOUT":                 "10s",
	"BULK_REVOKE_CONCURRENCY":      4,
	"MAP_BASE_URL":                 "https://www.openstreetmap.org",
	"LOG_LEVEL":                    "info",
	"OTEL_SERVICE_NAME":            "session-console",
	"OTEL_ENVIRONMENT":             "development",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE":  true,
	"OTEL_METRICS_ENABLED":         false,
	"OTEL_TRACING_ENABLED":         false,
	"OTEL_LOGS_ENABLED":            false,
	"OTEL_METRICS_EXPORT_INTERVAL": "15s",
	"SHUTDOWN_TIMEOUT":             "10s",
}

// Load reads .env (if present) and the environment. Environment variables
// win over .env. The result carries the settings every binary needs; server
// only checks live in ValidateServer.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var r raw
	if err := v.Unmarshal(&r); err != nil {
		err = &ParseError{Key: "environment", Err: err}
		recordValidation(context.Background(), scopeShared, "", err)
		return nil, err
	}

	cfg, err := r.build()
	if err == nil {
		err = cfg.Validate()
	}
	recordValidation(context.Background(), scopeShared, r.AppEnv, err)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r raw) build() (*Config, error) {
	cfg := &Config{
		AppEnv:                   strings.TrimSpace(r.AppEnv),
		HTTPAddr:                 strings.TrimSpace(r.HTTPAddr),
		DatabaseURL:              strings.TrimSpace(r.DatabaseURL),
		RedisAddr:                strings.TrimSpace(r.RedisAddr),
		RedisPassword:            r.RedisPassword,
		RedisDB:                  r.RedisDB,
		JWTIssuer:                r.JWTIssuer,
		JWTAudience:              r.JWTAudience,
		JWTAccessSecret:          r.JWTAccessSecret,
		APIRateLimitPerMin:       r.APIRateLimitPerMin,
		GeoBaseURL:               strings.TrimRight(strings.TrimSpace(r.GeoBaseURL), "/"),
		GeoRateLimitRPS:          r.GeoRateLimitRPS,
		AuthBaseURL:              strings.TrimRight(strings.TrimSpace(r.AuthBaseURL), "/"),
		AuthToken:                strings.TrimSpace(r.AuthToken),
		BulkRevokeConcurrency:    r.BulkRevokeConcurrency,
		MapBaseURL:               strings.TrimRight(strings.TrimSpace(r.MapBaseURL), "/"),
		LogLevel:                 strings.ToLower(strings.TrimSpace(r.LogLevel)),
		OTELServiceName:          r.OTELServiceName,
		OTELEnvironment:          r.OTELEnvironment,
		OTELExporterOTLPEndpoint: r.OTELExporterOTLPEndpoint,
		OTELExporterOTLPInsecure: r.OTELExporterOTLPInsecure,
		OTELMetricsEnabled:       r.OTELMetricsEnabled,
		OTELTracingEnabled:       r.OTELTracingEnabled,
		OTELLogsEnabled:          r.OTELLogsEnabled,
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"JWT_ACCESS_TTL", r.JWTAccessTTL, &cfg.JWTAccessTTL},
		{"SESSION_TTL", r.SessionTTL, &cfg.SessionTTL},
		{"GEO_TIMEOUT", r.GeoTimeout, &cfg.GeoTimeout},
		{"GEO_CACHE_TTL", r.GeoCacheTTL, &cfg.GeoCacheTTL},
		{"AUTH_TIMEOUT", r.AuthTimeout, &cfg.AuthTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", r.OTELMetricsExportInterval, &cfg.OTELMetricsExportInterval},
		{"SHUTDOWN_TIMEOUT", r.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return nil, &ParseError{Key: d.key, Err: err}
		}
		*d.dst = parsed
	}
	return cfg, nil
}

// Validate checks the settings shared by every binary.
func (c *Config) Validate() error {
	var errs []error
	if c.GeoTimeout <= 0 {
		errs = append(errs, errors.New("GEO_TIMEOUT must be positive"))
	}
	if c.AuthTimeout <= 0 {
		errs = append(errs, errors.New("AUTH_TIMEOUT must be positive"))
	}
	if c.GeoCacheTTL < 0 {
		errs = append(errs, errors.New("GEO_CACHE_TTL must not be negative"))
	}
	if c.GeoRateLimitRPS < 0 {
		errs = append(errs, errors.New("GEO_RATE_LIMIT_RPS must not be negative"))
	}
	if c.BulkRevokeConcurrency < 1 {
		errs = append(errs, errors.New("BULK_REVOKE_CONCURRENCY must be at least 1"))
	}
	for key, raw := range map[string]string{
		"GEO_BASE_URL":  c.GeoBaseURL,
		"AUTH_BASE_URL": c.AuthBaseURL,
		"MAP_BASE_URL":  c.MapBaseURL,
	} {
		if err := checkBaseURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s %w", key, err))
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ValidateServer adds the checks only sessiond needs.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be at least 32 characters"))
	}
	if c.JWTAccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.APIRateLimitPerMin < 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT_RPM must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	err := errors.Join(errs...)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	recordValidation(context.Background(), scopeServer, c.AppEnv, err)
	return err
}

func checkBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}
