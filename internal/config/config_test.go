package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/limoo-im/limoo-go-driver/internal/auth"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-listener
api:
  rest_url: https://limoo.example.com/Limonad/api/v1
  ws_url: wss://limoo.example.com/Limonad/websocket
  access_token: abc
connection:
  initial_max_attempts: 3
  retry_increment: 500ms
journal:
  enabled: true
  database:
    host: localhost
    port: 5432
    name: limoo
    user: limoo
    password: limoo
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-listener" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-listener")
	}
	if cfg.API.WSURL != "wss://limoo.example.com/Limonad/websocket" {
		t.Errorf("API.WSURL = %q", cfg.API.WSURL)
	}
	if cfg.Connection.InitialMaxAttempts != 3 {
		t.Errorf("Connection.InitialMaxAttempts = %d, want 3", cfg.Connection.InitialMaxAttempts)
	}
	if cfg.Connection.RetryIncrement != 500*time.Millisecond {
		t.Errorf("Connection.RetryIncrement = %v, want 500ms", cfg.Connection.RetryIncrement)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Database.Host != "localhost" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_LIMOO_TOKEN", "secret123")

	yaml := `
api:
  access_token: ${TEST_LIMOO_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.AccessToken != "secret123" {
		t.Errorf("API.AccessToken = %q, want %q", cfg.API.AccessToken, "secret123")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("Load() error = %v, want read config file error", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "api: [unterminated")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
api:
  access_token: abc
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Instance.ID != DefaultInstanceID {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, DefaultInstanceID)
	}
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.WSURL != DefaultWSURL {
		t.Errorf("API.WSURL = %q, want %q", cfg.API.WSURL, DefaultWSURL)
	}
	if cfg.Connection.InitialMaxAttempts != 2 {
		t.Errorf("Connection.InitialMaxAttempts = %d, want 2", cfg.Connection.InitialMaxAttempts)
	}
	if cfg.Connection.MaxAttempts != 1_000_000 {
		t.Errorf("Connection.MaxAttempts = %d, want 1000000", cfg.Connection.MaxAttempts)
	}
	if cfg.Connection.RetryIncrement != 2*time.Second {
		t.Errorf("Connection.RetryIncrement = %v, want 2s", cfg.Connection.RetryIncrement)
	}
	if cfg.Workspace.CacheTTL != DefaultCacheTTL {
		t.Errorf("Workspace.CacheTTL = %v, want %v", cfg.Workspace.CacheTTL, DefaultCacheTTL)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: x\n")

	_, err := LoadAndValidate(path)
	want := "validate config: api.access_token or api.access_token_file is required"
	if err == nil || err.Error() != want {
		t.Errorf("LoadAndValidate() error = %v, want %q", err, want)
	}
}

func TestLoadResolvesRelativeTokenFile(t *testing.T) {
	path := writeTempFile(t, "api:\n  access_token_file: secrets/token\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := filepath.Join(filepath.Dir(path), "secrets", "token")
	if cfg.API.AccessTokenFile != want {
		t.Errorf("API.AccessTokenFile = %q, want %q", cfg.API.AccessTokenFile, want)
	}
}

func TestLoadAndValidateChecksTokenFile(t *testing.T) {
	path := writeTempFile(t, "api:\n  access_token_file: token\n")

	_, err := LoadAndValidate(path)
	if err == nil || !strings.HasPrefix(err.Error(), "api.access_token_file: read token file") {
		t.Fatalf("LoadAndValidate() error = %v, want unreadable token file", err)
	}

	tokenPath := filepath.Join(filepath.Dir(path), "token")
	if err := os.WriteFile(tokenPath, []byte("  \n"), 0600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	if _, err := LoadAndValidate(path); !errors.Is(err, auth.ErrNoToken) {
		t.Fatalf("LoadAndValidate() error = %v, want ErrNoToken", err)
	}

	if err := os.WriteFile(tokenPath, []byte("abc\n"), 0600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() unexpected error: %v", err)
	}
	if cfg.API.AccessTokenFile != tokenPath {
		t.Errorf("API.AccessTokenFile = %q, want %q", cfg.API.AccessTokenFile, tokenPath)
	}
}

// validConfig returns a config with defaults applied that passes Validate.
func validConfig() DriverConfig {
	cfg := DriverConfig{API: APIConfig{AccessToken: "abc"}}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	validDB := DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 4, MinConns: 1}

	tests := []struct {
		name    string
		mutate  func(*DriverConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *DriverConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "http websocket url",
			mutate:  func(c *DriverConfig) { c.API.WSURL = "https://limoo.example.com/ws" },
			wantErr: `api.ws_url must be an absolute [ws wss] URL, got "https://limoo.example.com/ws"`,
		},
		{
			name:    "relative rest url",
			mutate:  func(c *DriverConfig) { c.API.RestURL = "/api/v1" },
			wantErr: `api.rest_url must be an absolute [http https] URL, got "/api/v1"`,
		},
		{
			name:    "missing token",
			mutate:  func(c *DriverConfig) { c.API.AccessToken = "" },
			wantErr: "api.access_token or api.access_token_file is required",
		},
		{
			name:    "both token sources",
			mutate:  func(c *DriverConfig) { c.API.AccessTokenFile = "/run/secrets/token" },
			wantErr: "api.access_token and api.access_token_file are mutually exclusive",
		},
		{
			name:    "token file only",
			mutate:  func(c *DriverConfig) { c.API.AccessToken = ""; c.API.AccessTokenFile = "/run/secrets/token" },
			wantErr: "",
		},
		{
			name:    "zero initial attempts",
			mutate:  func(c *DriverConfig) { c.Connection.InitialMaxAttempts = -1 },
			wantErr: "connection.initial_max_attempts must be >= 1",
		},
		{
			name:    "ping timeout not above interval",
			mutate:  func(c *DriverConfig) { c.Connection.PingTimeout = c.Connection.PingInterval },
			wantErr: "connection.ping_timeout (30s) must exceed ping_interval (30s)",
		},
		{
			name: "disabled journal skips database",
			mutate: func(c *DriverConfig) {
				c.Journal.Enabled = false
				c.Journal.Database.Host = ""
			},
			wantErr: "",
		},
		{
			name:    "enabled journal requires host",
			mutate:  func(c *DriverConfig) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *DriverConfig) {
				c.Journal.Enabled = true
				c.Journal.Database = validDB
				c.Journal.Database.MinConns = 10
			},
			wantErr: "journal.database.min_conns (10) cannot exceed max_conns (4)",
		},
		{
			name: "valid journal",
			mutate: func(c *DriverConfig) {
				c.Journal.Enabled = true
				c.Journal.Database = validDB
			},
			wantErr: "",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *DriverConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "valid config",
			mutate:  func(c *DriverConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
