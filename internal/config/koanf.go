// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched, in
// order. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/syncd/config.yaml",
	"/etc/syncd/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             10,
			Breaker: BreakerConfig{
				MaxRequests:      3,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				MinRequests:      5,
				FailureRatio:     0.6,
				FailureThreshold: 5,
			},
			Blobs: BlobConfig{
				Entries:  64,
				MaxBytes: 16 << 20,
				TTL:      time.Hour,
			},
		},
		Auth: AuthConfig{
			ExitOnLogout: false,
		},
		Realtime: RealtimeConfig{
			Enabled:              true,
			Path:                 "/v1/ws/user-updates",
			MaxReconnectAttempts: 5,
			ReconnectBaseDelay:   time.Second,
			ReconnectMaxDelay:    10 * time.Second,
			PingInterval:         30 * time.Second,
			HandshakeTimeout:     10 * time.Second,
			WriteTimeout:         10 * time.Second,
			ReadLimit:            1 << 20,
		},
		Polling: PollingConfig{
			Enabled:              true,
			TickInterval:         5 * time.Second,
			ConnectedInterval:    60 * time.Second,
			DisconnectedInterval: 10 * time.Second,
		},
		Server: ServerConfig{
			Enabled:           true,
			Host:              "127.0.0.1",
			Port:              8787,
			CORSOrigins:       []string{"http://localhost:3000"},
			RefreshRateLimit:  6,
			RefreshRateWindow: time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with koanf v2 from three layers:
// struct defaults, an optional YAML file, then mapped environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ConfigFile returns the config file Load would read, or "" if none exists.
func ConfigFile() string {
	return findConfigFile()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"sync_api_url":                    "api.base_url",
	"sync_api_timeout":                "api.timeout",
	"sync_api_rps":                    "api.requests_per_second",
	"sync_api_burst":                  "api.burst",
	"sync_breaker_max_requests":       "api.breaker.max_requests",
	"sync_breaker_interval":           "api.breaker.interval",
	"sync_breaker_timeout":            "api.breaker.timeout",
	"sync_breaker_min_requests":       "api.breaker.min_requests",
	"sync_breaker_failure_ratio":      "api.breaker.failure_ratio",
	"sync_breaker_failure_threshold":  "api.breaker.failure_threshold",
	"sync_blob_cache_entries":         "api.blobs.entries",
	"sync_blob_cache_max_bytes":       "api.blobs.max_bytes",
	"sync_blob_cache_ttl":             "api.blobs.ttl",
	"sync_access_token":               "auth.access_token",
	"sync_token_file":                 "auth.token_file",
	"sync_user_id":                    "auth.user_id",
	"sync_exit_on_logout":             "auth.exit_on_logout",
	"sync_realtime_enabled":           "realtime.enabled",
	"sync_realtime_path":              "realtime.path",
	"sync_max_reconnect_attempts":     "realtime.max_reconnect_attempts",
	"sync_reconnect_base_delay":       "realtime.reconnect_base_delay",
	"sync_reconnect_max_delay":        "realtime.reconnect_max_delay",
	"sync_ping_interval":              "realtime.ping_interval",
	"sync_handshake_timeout":          "realtime.handshake_timeout",
	"sync_write_timeout":              "realtime.write_timeout",
	"sync_read_limit":                 "realtime.read_limit",
	"sync_polling_enabled":            "polling.enabled",
	"sync_poll_tick":                  "polling.tick_interval",
	"sync_poll_connected_interval":    "polling.connected_interval",
	"sync_poll_disconnected_interval": "polling.disconnected_interval",
	"http_enabled":                    "server.enabled",
	"http_host":                       "server.host",
	"http_port":                       "server.port",
	"cors_origins":                    "server.cors_origins",
	"refresh_rate_limit":              "server.refresh_rate_limit",
	"refresh_rate_window":             "server.refresh_rate_window",
	"http_shutdown_timeout":           "server.shutdown_timeout",
	"log_level":                       "logging.level",
	"log_format":                      "logging.format",
	"log_caller":                      "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
//
//	SYNC_API_URL -> api.base_url
//	HTTP_PORT    -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes. Callers
// reload with Load() and apply only the settings that can change at runtime.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
