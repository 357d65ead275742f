package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GeoBaseURL != "https://ipwho.is" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.GeoTimeout != 5*time.Second || cfg.JWTAccessTTL != 15*time.Minute {
		t.Fatalf("unexpected default durations: geo=%s access=%s", cfg.GeoTimeout, cfg.JWTAccessTTL)
	}
	if cfg.BulkRevokeConcurrency != 4 {
		t.Fatalf("expected bulk concurrency 4, got %d", cfg.BulkRevokeConcurrency)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "GEO_TIMEOUT=2s\nAUTH_BASE_URL=http://file.example/\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeoTimeout != 2*time.Second {
		t.Fatalf("expected file value for GEO_TIMEOUT, got %s", cfg.GeoTimeout)
	}
	if cfg.AuthBaseURL != "http://file.example" {
		t.Fatalf("expected trimmed base url, got %q", cfg.AuthBaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env to win over file, got %q", cfg.LogLevel)
	}
}

func TestLoadMissingFileIgnored(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file must be ignored: %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("GEO_TIMEOUT", "soon")
	_, err := LoadFile("")
	if err == nil || !strings.Contains(err.Error(), "parse GEO_TIMEOUT") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if got := classifyValidationError(err); got != "parse" {
		t.Fatalf("expected parse class, got %q", got)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "geo url scheme", key: "GEO_BASE_URL", val: "ftp://geo.example", want: "GEO_BASE_URL must use http or https"},
		{name: "auth url host", key: "AUTH_BASE_URL", val: "http://", want: "AUTH_BASE_URL must include a host"},
		{name: "bulk concurrency", key: "BULK_REVOKE_CONCURRENCY", val: "0", want: "BULK_REVOKE_CONCURRENCY must be at least 1"},
		{name: "log level", key: "LOG_LEVEL", val: "loud", want: "LOG_LEVEL"},
		{name: "geo timeout", key: "GEO_TIMEOUT", val: "0s", want: "GEO_TIMEOUT must be positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := LoadFile("")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.HasPrefix(err.Error(), "validate config:") || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error %q", err)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = cfg.ValidateServer()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected secret validation error, got %v", err)
	}

	cfg.JWTAccessSecret = strings.Repeat("s", 32)
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("expected valid server config, got %v", err)
	}

	cfg.DatabaseURL = ""
	cfg.ShutdownTimeout = 0
	err = cfg.ValidateServer()
	if err == nil {
		t.Fatal("expected errors")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{"DATABASE_URL is required", "SHUTDOWN_TIMEOUT must be positive"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
