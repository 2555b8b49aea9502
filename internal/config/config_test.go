package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv satisfies the fields Validate insists on, so individual
// tests only override what they exercise.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("THB_REPOSITORY_CONTENTS_URL", "https://api.github.com/repos/acme/templates-hub/contents/templates")
	t.Setenv("THB_AUTH_STATIC_JWT_SECRET", "dev-secret")
	t.Setenv("THB_AUTH_ADMIN_SECRET", "admin-secret")
}

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "templates_hub" {
		t.Errorf("database name = %q, want templates_hub", cfg.Database.Name)
	}
	if !cfg.Sync.Enabled || cfg.Sync.IntervalMinutes != 60 {
		t.Errorf("sync = %+v, want enabled every 60 minutes", cfg.Sync)
	}
	if cfg.Sync.Interval() != time.Hour {
		t.Errorf("sync interval = %v, want 1h", cfg.Sync.Interval())
	}
	if cfg.Notifications.Enabled {
		t.Error("notifications should default to disabled")
	}
	if cfg.Telemetry.Metrics.PrometheusPort != 9090 {
		t.Errorf("prometheus port = %d, want 9090", cfg.Telemetry.Metrics.PrometheusPort)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("THB_SERVER_PORT", "9999")
	t.Setenv("THB_DATABASE_HOST", "db.internal")
	t.Setenv("THB_SYNC_INTERVAL_MINUTES", "15")
	t.Setenv("THB_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("database host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Sync.Interval() != 15*time.Minute {
		t.Errorf("sync interval = %v, want 15m", cfg.Sync.Interval())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	setRequiredEnv(t)

	content := `
server:
  port: 8443
database:
  host: pg.example.com
  password: ${THB_TEST_DB_PASSWORD}
sync:
  enabled: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("THB_TEST_DB_PASSWORD", "expanded-password")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8443 {
		t.Errorf("server port = %d, want 8443", cfg.Server.Port)
	}
	if cfg.Database.Password != "expanded-password" {
		t.Errorf("database password = %q, want the expanded value", cfg.Database.Password)
	}
	if cfg.Sync.Enabled {
		t.Error("sync should be disabled by the config file")
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	setRequiredEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		unset string
		want  string
	}{
		{
			name:  "missing contents url",
			unset: "THB_REPOSITORY_CONTENTS_URL",
			want:  "repository.contents_url",
		},
		{
			name:  "missing admin secret",
			unset: "THB_AUTH_ADMIN_SECRET",
			want:  "auth.admin_secret",
		},
		{
			name:  "no auth mechanism",
			unset: "THB_AUTH_STATIC_JWT_SECRET",
			want:  "auth.static_jwt_secret",
		},
		{
			name: "oidc without issuer",
			env:  map[string]string{"THB_AUTH_OIDC_ENABLED": "true"},
			want: "auth.oidc.issuer_url",
		},
		{
			name: "bad logging level",
			env:  map[string]string{"THB_LOGGING_LEVEL": "verbose"},
			want: "logging level",
		},
		{
			name: "sync interval too small",
			env:  map[string]string{"THB_SYNC_INTERVAL_MINUTES": "0"},
			want: "sync.interval_minutes",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			if tc.unset != "" {
				t.Setenv(tc.unset, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "hub",
		Password: "pw",
		Name:     "templates_hub",
		SSLMode:  "require",
	}

	want := "host=localhost port=5432 user=hub password=pw dbname=templates_hub sslmode=require"
	if got := db.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestGetAddress(t *testing.T) {
	server := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := server.GetAddress(); got != "0.0.0.0:8080" {
		t.Errorf("GetAddress() = %q", got)
	}
}
