// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

// Package config provides centralized configuration for all Tabula
// components: HTTP server, database, websocket presence subsystem,
// security and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Websocket WebsocketConfig `koanf:"websocket"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8080)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
//   - HTTP_CORS_ORIGINS: Allowed browser origins (default: *)
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - DUCKDB_PATH: Database file path (default: /data/tabula.duckdb)
//   - DUCKDB_MAX_MEMORY: Memory limit (default: 1GB)
//   - DUCKDB_THREADS: Worker threads, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// WebsocketConfig holds settings for the connection presence subsystem.
//
// HeartbeatInterval is how often a liveness probe is sent on each open
// connection; HeartbeatTimeout is how long the server waits for a probe
// acknowledgment before the connection is considered dead. The queue sizes
// bound the registry command channel and each connection's private outbound
// queue; a full queue drops (and logs) rather than blocking.
type WebsocketConfig struct {
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `koanf:"heartbeat_timeout"`
	CommandQueueSize  int           `koanf:"command_queue_size"`
	SendQueueSize     int           `koanf:"send_queue_size"`
	MaxMessageSize    int64         `koanf:"max_message_size"`
}

// SecurityConfig holds authentication and rate limiting settings.
//
// Environment Variables:
//   - SESSION_STORE: "memory" or "badger" (default: badger)
//   - SESSION_STORE_PATH: BadgerDB directory (default: /data/sessions)
//   - SESSION_TIMEOUT: Session lifetime (default: 24h)
//   - RATE_LIMIT_REQS / RATE_LIMIT_WINDOW: Request rate limiting
type SecurityConfig struct {
	SessionStore     string        `koanf:"session_store"`
	SessionStorePath string        `koanf:"session_store_path"`
	SessionTimeout   time.Duration `koanf:"session_timeout"`
	BcryptCost       int           `koanf:"bcrypt_cost"`
	RateLimitReqs    int           `koanf:"rate_limit_reqs"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
	LoginRateLimit   int           `koanf:"login_rate_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Websocket.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", c.Websocket.HeartbeatInterval)
	}
	if c.Websocket.HeartbeatTimeout <= c.Websocket.HeartbeatInterval {
		return fmt.Errorf("heartbeat timeout (%s) must exceed the probe interval (%s)",
			c.Websocket.HeartbeatTimeout, c.Websocket.HeartbeatInterval)
	}
	if c.Websocket.CommandQueueSize < 1 || c.Websocket.SendQueueSize < 1 {
		return fmt.Errorf("websocket queue sizes must be at least 1")
	}
	switch c.Security.SessionStore {
	case "memory", "badger":
	default:
		return fmt.Errorf("invalid session store %q (must be memory or badger)", c.Security.SessionStore)
	}
	if c.Security.SessionStore == "badger" && c.Security.SessionStorePath == "" {
		return fmt.Errorf("session store path required for badger session store")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost %d outside valid range [4,31]", c.Security.BcryptCost)
	}
	return nil
}

// Addr returns the host:port address the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
