package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:5001/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Polling.RealtimeInterval)
	assert.Equal(t, 60*time.Second, cfg.Polling.AlertInterval)
	assert.Equal(t, 0.7, cfg.Alerts.Critical())
	assert.Equal(t, 0.4, cfg.Alerts.Warning())
	assert.Equal(t, 2, cfg.Capture.Scale)
	assert.True(t, Enabled(cfg.Polling.AutoRefresh))
	assert.True(t, Enabled(cfg.Polling.Alerting))
	assert.NoError(t, Validate(cfg))
}

func TestLoadFromPathMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9090"
upstream:
  base_url: "http://teb-api.internal:5001/api"
  timeout: 5s
polling:
  realtime_interval: 10s
  auto_refresh: false
log:
  level: debug
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://teb-api.internal:5001/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Polling.RealtimeInterval)
	assert.Equal(t, 60*time.Second, cfg.Polling.AlertInterval)
	assert.False(t, Enabled(cfg.Polling.AutoRefresh))
	assert.True(t, Enabled(cfg.Polling.Alerting))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromPathMissingFile(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromPathRejectsBadYAML(t *testing.T) {
	_, err := LoadFromPath(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	_, err = LoadFromPath(writeConfig(t, "alerts:\n  warning_threshold: 0.9\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFromPathKeepsZeroWarningThreshold(t *testing.T) {
	cfg, err := LoadFromPath(writeConfig(t, "alerts:\n  warning_threshold: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Alerts.WarningThreshold)
	assert.Equal(t, 0.0, cfg.Alerts.Warning())
	assert.Equal(t, 0.7, cfg.Alerts.Critical())
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{
		EnvBaseURL:    "https://teb.example.com/api",
		EnvListenAddr: "127.0.0.1:8081",
	}
	ApplyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "https://teb.example.com/api", cfg.Upstream.BaseURL)
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv(EnvBaseURL, "http://override:5001/api")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://override:5001/api", cfg.Upstream.BaseURL)

	t.Setenv(EnvBaseURL, "not a url")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Server.Listen = "" }},
		{"relative base url", func(c *Config) { c.Upstream.BaseURL = "/api" }},
		{"ftp base url", func(c *Config) { c.Upstream.BaseURL = "ftp://host/api" }},
		{"negative timeout", func(c *Config) { c.Upstream.Timeout = -time.Second }},
		{"zero realtime interval", func(c *Config) { c.Polling.RealtimeInterval = 0 }},
		{"zero alert interval", func(c *Config) { c.Polling.AlertInterval = 0 }},
		{"inverted thresholds", func(c *Config) { c.Alerts.WarningThreshold = float64Ptr(0.8) }},
		{"critical above one", func(c *Config) { c.Alerts.CriticalThreshold = float64Ptr(1.5) }},
		{"missing warning threshold", func(c *Config) { c.Alerts.WarningThreshold = nil }},
		{"zero scale", func(c *Config) { c.Capture.Scale = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
		})
	}
}

func TestIsValidLevel(t *testing.T) {
	assert.True(t, IsValidLevel("debug"))
	assert.True(t, IsValidLevel("WARN"))
	assert.False(t, IsValidLevel(""))
	assert.False(t, IsValidLevel("trace"))
}
