// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete syncd configuration.
//
// Load it with Load(); the struct tags drive both koanf unmarshaling and
// go-playground/validator rules.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("invalid configuration")
//	}
type Config struct {
	API      APIConfig      `koanf:"api"`
	Auth     AuthConfig     `koanf:"auth"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Polling  PollingConfig  `koanf:"polling"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// APIConfig describes the backend REST collaborator. The push endpoint is
// derived from BaseURL.
type APIConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,httpurl"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int           `koanf:"burst" validate:"gte=1"`
	Breaker           BreakerConfig `koanf:"breaker"`
	Blobs             BlobConfig    `koanf:"blobs"`
}

// BlobConfig bounds the in-memory avatar and logo cache. Entries of 0
// disables it.
type BlobConfig struct {
	Entries  int           `koanf:"entries" validate:"gte=0"`
	MaxBytes int64         `koanf:"max_bytes" validate:"gte=0"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
}

// BreakerConfig tunes the circuit breaker in front of the REST client.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval         time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests      uint32        `koanf:"min_requests" validate:"gte=1"`
	FailureRatio     float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gte=1"`
}

// AuthConfig supplies the session credentials. Authentication itself happens
// elsewhere; syncd only consumes the bearer token.
type AuthConfig struct {
	AccessToken string `koanf:"access_token"`
	// TokenFile is re-read on every access so that an external refresher can
	// rotate the token without restarting the daemon.
	TokenFile    string `koanf:"token_file"`
	UserID       string `koanf:"user_id"`
	ExitOnLogout bool   `koanf:"exit_on_logout"`
}

// RealtimeConfig tunes the push connection.
type RealtimeConfig struct {
	Enabled              bool          `koanf:"enabled"`
	Path                 string        `koanf:"path" validate:"required,urlpath"`
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts" validate:"gte=0,lte=100"`
	ReconnectBaseDelay   time.Duration `koanf:"reconnect_base_delay" validate:"gt=0"`
	ReconnectMaxDelay    time.Duration `koanf:"reconnect_max_delay" validate:"gtefield=ReconnectBaseDelay"`
	PingInterval         time.Duration `koanf:"ping_interval" validate:"gt=0"`
	HandshakeTimeout     time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	WriteTimeout         time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ReadLimit            int64         `koanf:"read_limit" validate:"gt=0"`
}

// PollingConfig tunes the staleness check. TickInterval is how often the
// poller wakes; the connected and disconnected intervals are the throttle
// windows that decide whether a tick actually reaches the backend.
type PollingConfig struct {
	Enabled              bool          `koanf:"enabled"`
	TickInterval         time.Duration `koanf:"tick_interval" validate:"gt=0"`
	ConnectedInterval    time.Duration `koanf:"connected_interval" validate:"gt=0"`
	DisconnectedInterval time.Duration `koanf:"disconnected_interval" validate:"gt=0"`
}

// ServerConfig configures the local status surface.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RefreshRateLimit  int           `koanf:"refresh_rate_limit" validate:"gte=1"`
	RefreshRateWindow time.Duration `koanf:"refresh_rate_window" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address of the status surface.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ResolveToken returns the configured access token. When TokenFile is set it
// takes precedence and is read fresh.
func (a *AuthConfig) ResolveToken() (string, error) {
	if a.TokenFile == "" {
		return a.AccessToken, nil
	}
	data, err := os.ReadFile(a.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Load reads configuration from, in increasing priority:
//  1. Built-in defaults
//  2. Config file (CONFIG_PATH, config.yaml, /etc/syncd/config.yaml)
//  3. Environment variables
func Load() (*Config, error) {
	return LoadWithKoanf()
}
