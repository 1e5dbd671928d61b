package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default configuration file name
const ConfigFileName = "teb-dashboard.yaml"

// Environment overrides
const (
	EnvBaseURL    = "TEB_API_BASE_URL"
	EnvListenAddr = "TEB_LISTEN_ADDR"
	EnvLogLevel   = "TEB_LOG_LEVEL"
)

// Config holds all service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Polling  PollingConfig  `yaml:"polling"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Capture  CaptureConfig  `yaml:"capture"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// UpstreamConfig locates the telemetry API
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PollingConfig holds the poll intervals and their initial toggles
type PollingConfig struct {
	RealtimeInterval time.Duration `yaml:"realtime_interval"`
	AlertInterval    time.Duration `yaml:"alert_interval"`
	// nil means enabled
	AutoRefresh *bool `yaml:"auto_refresh"`
	Alerting    *bool `yaml:"alerting"`
}

// AlertsConfig holds the prediction alert thresholds. Nil means unset, so
// an explicit zero in the file is kept.
type AlertsConfig struct {
	CriticalThreshold *float64 `yaml:"critical_threshold"`
	WarningThreshold  *float64 `yaml:"warning_threshold"`
}

// Critical returns the critical threshold, zero when unset
func (a AlertsConfig) Critical() float64 {
	if a.CriticalThreshold == nil {
		return 0
	}
	return *a.CriticalThreshold
}

// Warning returns the warning threshold, zero when unset
func (a AlertsConfig) Warning() float64 {
	if a.WarningThreshold == nil {
		return 0
	}
	return *a.WarningThreshold
}

// CaptureConfig holds the rasterization settings of the dashboard capture
type CaptureConfig struct {
	Scale int `yaml:"scale"`
}

// LogConfig holds the logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from path, falling back to defaults when path is empty
// or the file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromPath(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	ApplyEnv(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// ApplyEnv overrides config values from the environment
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvListenAddr)); v != "" {
		cfg.Server.Listen = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	if cfg.Server.Listen == "" {
		return fmt.Errorf("%w: server.listen is required", ErrInvalidConfig)
	}

	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: upstream.base_url must be an absolute http(s) URL, got %q",
			ErrInvalidConfig, cfg.Upstream.BaseURL)
	}

	if cfg.Upstream.Timeout < 0 {
		return fmt.Errorf("%w: upstream.timeout must be non-negative, got %s",
			ErrInvalidConfig, cfg.Upstream.Timeout)
	}

	if cfg.Polling.RealtimeInterval <= 0 {
		return fmt.Errorf("%w: polling.realtime_interval must be positive, got %s",
			ErrInvalidConfig, cfg.Polling.RealtimeInterval)
	}
	if cfg.Polling.AlertInterval <= 0 {
		return fmt.Errorf("%w: polling.alert_interval must be positive, got %s",
			ErrInvalidConfig, cfg.Polling.AlertInterval)
	}

	if cfg.Alerts.CriticalThreshold == nil || cfg.Alerts.WarningThreshold == nil {
		return fmt.Errorf("%w: alerts.critical_threshold and alerts.warning_threshold are required",
			ErrInvalidConfig)
	}
	// Thresholds are probabilities and the critical one ranks above the warning one
	warning, critical := cfg.Alerts.Warning(), cfg.Alerts.Critical()
	if warning < 0 || critical > 1 || warning >= critical {
		return fmt.Errorf("%w: alert thresholds must satisfy 0 <= warning < critical <= 1, got %g and %g",
			ErrInvalidConfig, warning, critical)
	}

	if cfg.Capture.Scale < 1 {
		return fmt.Errorf("%w: capture.scale must be at least 1, got %d",
			ErrInvalidConfig, cfg.Capture.Scale)
	}

	if !IsValidLevel(cfg.Log.Level) {
		return fmt.Errorf("%w: log.level must be one of %v, got %q",
			ErrInvalidConfig, ValidLevels, cfg.Log.Level)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("%w: log.format must be text or json, got %q",
			ErrInvalidConfig, cfg.Log.Format)
	}

	return nil
}

// Enabled reads an optional toggle, where nil means enabled
func Enabled(toggle *bool) bool {
	return toggle == nil || *toggle
}
