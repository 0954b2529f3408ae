package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address = %q, want default", cfg.Server.ListenAddress)
	}
	if cfg.State.Backend != DefaultStateBackend {
		t.Errorf("state backend = %q, want default", cfg.State.Backend)
	}
	if cfg.State.TTL != DefaultStateTTL {
		t.Errorf("state TTL = %v, want default", cfg.State.TTL)
	}
	if !cfg.Audit.Enabled {
		t.Error("audit should default to enabled")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics should default to enabled")
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging defaults wrong: %+v", cfg.Telemetry.Logging)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
state:
  backend: memory
  ttl: 1h
audit:
  enabled: false
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.State.Backend != "memory" || cfg.State.TTL != time.Hour {
		t.Errorf("state config wrong: %+v", cfg.State)
	}
	if cfg.Audit.Enabled {
		t.Error("audit should be disabled")
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("logging config wrong: %+v", cfg.Telemetry.Logging)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad address", "server:\n  listen_address: not-an-address\n"},
		{"bad backend", "state:\n  backend: redis\n"},
		{"bad log level", "telemetry:\n  logging:\n    level: loud\n"},
		{"bad cron", "state:\n  sweep_schedule: 'every tuesday'\n"},
		{"metrics path without slash", "telemetry:\n  metrics:\n    path: metrics\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "{}\n")

	t.Setenv("BEACON_SERVER_LISTEN_ADDRESS", "127.0.0.1:7777")
	t.Setenv("BEACON_STATE_BACKEND", "memory")
	t.Setenv("BEACON_STATE_TTL", "30m")
	t.Setenv("BEACON_LOGGING_LEVEL", "warn")
	t.Setenv("BEACON_AUDIT_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:7777" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.State.Backend != "memory" || cfg.State.TTL != 30*time.Minute {
		t.Errorf("state config wrong: %+v", cfg.State)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Audit.Enabled {
		t.Error("audit should be disabled via env")
	}
}

func TestEnvOverridesAreValidated(t *testing.T) {
	path := writeConfig(t, "{}\n")
	t.Setenv("BEACON_STATE_BACKEND", "redis")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error for bad env override")
	}
}

func TestValidationErrorMessageListsFields(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{"server.listen_address", "must not be empty"},
		{"state.ttl", "must be positive"},
	}}

	msg := err.Error()
	if msg == "" {
		t.Fatal("expected message")
	}
	for _, want := range []string{"server.listen_address", "state.ttl"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message should mention %q: %s", want, msg)
		}
	}
}
