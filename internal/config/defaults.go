package config

import (
	"strings"
	"time"
)

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      ":8080",
			CORSOrigins: []string{"*"},
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:5001/api",
			// zero leaves requests to the transport defaults
			Timeout: 0,
		},
		Polling: PollingConfig{
			RealtimeInterval: 30 * time.Second,
			AlertInterval:    60 * time.Second,
		},
		Alerts: AlertsConfig{
			CriticalThreshold: float64Ptr(0.7),
			WarningThreshold:  float64Ptr(0.4),
		},
		Capture: CaptureConfig{
			Scale: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}

	result.Server = mergeServerConfig(loaded.Server, defaults.Server)
	result.Upstream = mergeUpstreamConfig(loaded.Upstream, defaults.Upstream)
	result.Polling = mergePollingConfig(loaded.Polling, defaults.Polling)
	result.Alerts = mergeAlertsConfig(loaded.Alerts, defaults.Alerts)

	result.Capture = defaults.Capture
	if loaded.Capture.Scale != 0 {
		result.Capture.Scale = loaded.Capture.Scale
	}

	result.Log = defaults.Log
	if loaded.Log.Level != "" {
		result.Log.Level = loaded.Log.Level
	}
	if loaded.Log.Format != "" {
		result.Log.Format = loaded.Log.Format
	}

	return result
}

func mergeServerConfig(loaded, defaults ServerConfig) ServerConfig {
	result := defaults

	if loaded.Listen != "" {
		result.Listen = loaded.Listen
	}
	if len(loaded.CORSOrigins) > 0 {
		result.CORSOrigins = loaded.CORSOrigins
	}

	return result
}

func mergeUpstreamConfig(loaded, defaults UpstreamConfig) UpstreamConfig {
	result := defaults

	if loaded.BaseURL != "" {
		result.BaseURL = loaded.BaseURL
	}
	if loaded.Timeout != 0 {
		result.Timeout = loaded.Timeout
	}

	return result
}

func mergePollingConfig(loaded, defaults PollingConfig) PollingConfig {
	result := defaults

	if loaded.RealtimeInterval != 0 {
		result.RealtimeInterval = loaded.RealtimeInterval
	}
	if loaded.AlertInterval != 0 {
		result.AlertInterval = loaded.AlertInterval
	}
	// toggles are pointers, so an explicit false survives the merge
	if loaded.AutoRefresh != nil {
		result.AutoRefresh = loaded.AutoRefresh
	}
	if loaded.Alerting != nil {
		result.Alerting = loaded.Alerting
	}

	return result
}

func mergeAlertsConfig(loaded, defaults AlertsConfig) AlertsConfig {
	result := defaults

	if loaded.CriticalThreshold != nil {
		result.CriticalThreshold = loaded.CriticalThreshold
	}
	if loaded.WarningThreshold != nil {
		result.WarningThreshold = loaded.WarningThreshold
	}

	return result
}

func float64Ptr(v float64) *float64 {
	return &v
}

// ValidLevels lists the accepted log levels
var ValidLevels = []string{"debug", "info", "warn", "error"}

// IsValidLevel checks if the given log level is valid
func IsValidLevel(level string) bool {
	for _, valid := range ValidLevels {
		if strings.EqualFold(level, valid) {
			return true
		}
	}
	return false
}
