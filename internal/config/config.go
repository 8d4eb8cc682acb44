package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/limoo-im/limoo-go-driver/internal/auth"
)

// DriverConfig is the root configuration for a listener instance.
type DriverConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Listener   ListenerConfig   `yaml:"listener"`
	Journal    JournalConfig    `yaml:"journal"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstanceConfig identifies this instance in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Limoo endpoint and credential settings.
type APIConfig struct {
	RestURL         string        `yaml:"rest_url"`
	WSURL           string        `yaml:"ws_url"`
	AccessToken     string        `yaml:"access_token"`      // Usually ${LIMOO_ACCESS_TOKEN}
	AccessTokenFile string        `yaml:"access_token_file"` // Re-read on every connection attempt
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RateLimit       float64       `yaml:"rate_limit"` // REST requests per second, 0 = unlimited
	RateBurst       int           `yaml:"rate_burst"`
}

// ConnectionConfig holds event stream connection settings.
type ConnectionConfig struct {
	InitialMaxAttempts int           `yaml:"initial_max_attempts"`
	MaxAttempts        int           `yaml:"max_attempts"`
	RetryIncrement     time.Duration `yaml:"retry_increment"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// WorkspaceConfig holds workspace resolver settings.
type WorkspaceConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	NegativeTTL     time.Duration `yaml:"negative_ttl"`
	Prime           bool          `yaml:"prime"`            // Load all workspaces into the cache at startup
	RefreshInterval time.Duration `yaml:"refresh_interval"` // Reload workspaces periodically, 0 = never
}

// ListenerConfig holds listener registry settings.
type ListenerConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// JournalConfig holds the optional Postgres event journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Load reads a YAML config file and expands environment variables. A
// relative api.access_token_file is taken relative to the config file.
func Load(path string) (*DriverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg DriverConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if f := cfg.API.AccessTokenFile; f != "" && !filepath.IsAbs(f) {
		cfg.API.AccessTokenFile = filepath.Join(filepath.Dir(path), f)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*DriverConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, validates, and checks
// that a configured token file already holds a token. The file is read
// again on every connection attempt, so it may be rotated later.
func LoadAndValidate(path string) (*DriverConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.API.AccessTokenFile != "" {
		src := auth.FileToken{Path: cfg.API.AccessTokenFile}
		if _, err := src.AccessToken(context.Background()); err != nil {
			return nil, fmt.Errorf("api.access_token_file: %w", err)
		}
	}
	return cfg, nil
}
