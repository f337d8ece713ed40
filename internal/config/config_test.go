// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database path",
		},
		{
			name: "timeout below probe interval",
			mutate: func(c *Config) {
				c.Websocket.HeartbeatInterval = 30 * time.Second
				c.Websocket.HeartbeatTimeout = 10 * time.Second
			},
			wantErr: "heartbeat timeout",
		},
		{
			name:    "zero send queue",
			mutate:  func(c *Config) { c.Websocket.SendQueueSize = 0 },
			wantErr: "queue sizes",
		},
		{
			name:    "unknown session store",
			mutate:  func(c *Config) { c.Security.SessionStore = "redis" },
			wantErr: "invalid session store",
		},
		{
			name: "badger store without path",
			mutate: func(c *Config) {
				c.Security.SessionStore = "badger"
				c.Security.SessionStorePath = ""
			},
			wantErr: "session store path",
		},
		{
			name:    "bcrypt cost out of range",
			mutate:  func(c *Config) { c.Security.BcryptCost = 99 },
			wantErr: "bcrypt cost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"WS_HEARTBEAT_INTERVAL", "websocket.heartbeat_interval"},
		{"SESSION_STORE", "security.session_store"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("WS_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("WS_HEARTBEAT_TIMEOUT", "15s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Security.SessionStore != "memory" {
		t.Errorf("SessionStore = %q, want memory", cfg.Security.SessionStore)
	}
	if cfg.Websocket.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 5s", cfg.Websocket.HeartbeatInterval)
	}
	if cfg.Server.Addr() != "0.0.0.0:9999" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
}
