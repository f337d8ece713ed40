// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

// Package main is the entry point for the Tabula game server.
//
// Tabula is a backend for turn-based multiplayer games: accounts, friends,
// lobbies, chat, opaque game-state storage, and websocket push
// notifications so idle clients learn about turns, invites and messages
// without polling.
//
// # Startup order
//
//  1. Configuration: environment variables over config.yaml over defaults (koanf v2)
//  2. Logging: zerolog, json or console format
//  3. Database: DuckDB (file-backed, or in-memory when no path is set)
//  4. Sessions: in-memory or BadgerDB-backed session store
//  5. Connection registry: the websocket presence actor
//  6. HTTP server: REST API under /api/v2, websocket endpoint at /api/v2/ws
//
// The registry and HTTP server run under a suture supervision tree; either
// one crashing is restarted with backoff.
//
// # Shutdown
//
// SIGINT/SIGTERM cancels the tree context: the HTTP server drains in-flight
// requests, the registry closes every websocket, then the session store and
// database are closed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tabula-srv/tabula/internal/api"
	"github.com/tabula-srv/tabula/internal/auth"
	"github.com/tabula-srv/tabula/internal/config"
	"github.com/tabula-srv/tabula/internal/database"
	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/supervisor"
	"github.com/tabula-srv/tabula/internal/ws"
)

// version is overridden at build time:
//
//	go build -ldflags "-X main.version=v1.2.3" ./cmd/server
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("session_store", cfg.Security.SessionStore).
		Msg("Starting Tabula")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	sessions, err := auth.NewSessionStore(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session store")
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	registry := ws.NewRegistry(cfg.Websocket, db)
	handler := api.NewHandler(db, registry, sessions, cfg, version)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: cfg.Server.Timeout,
		// No blanket read/write timeouts: websocket connections are
		// long-lived and guarded by their own heartbeat.
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.Add(registry)
	tree.Add(supervisor.NewHTTPService(server, shutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.Root().ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	if unstopped, _ := tree.Root().UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Server stopped")
}
