// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/auth"
	"github.com/tabula-srv/tabula/internal/config"
	"github.com/tabula-srv/tabula/internal/database"
	"github.com/tabula-srv/tabula/internal/ws"
)

// Handler bundles the dependencies of all endpoint handlers.
type Handler struct {
	db        *database.DB
	registry  *ws.Registry
	sessions  auth.SessionStore
	cfg       *config.Config
	version   string
	startTime time.Time
}

// NewHandler wires the handler set.
func NewHandler(db *database.DB, registry *ws.Registry, sessions auth.SessionStore,
	cfg *config.Config, version string) *Handler {
	return &Handler{
		db:        db,
		registry:  registry,
		sessions:  sessions,
		cfg:       cfg,
		version:   version,
		startTime: time.Now(),
	}
}

// account returns the authenticated account from the request context.
// RequireAuth guarantees presence on protected routes.
func account(r *http.Request) uuid.UUID {
	id, _ := auth.AccountFromContext(r.Context())
	return id
}

// HandleFinishedTurn stores an uploaded turn and notifies the co-players
// with updateGameData. Shared by the websocket ingress path and the REST
// upload endpoint. Implements ws.TurnHandler.
func (h *Handler) HandleFinishedTurn(ctx context.Context, player uuid.UUID, turn *ws.FinishedTurn) error {
	dataID, notify, err := h.db.UpdateGameState(ctx, turn.GameUUID, player, turn.GameData)
	if err != nil {
		return err
	}
	update := ws.Event{
		Type: ws.EventTypeUpdateGameData,
		Content: ws.UpdateGameDataContent{
			GameUUID:   turn.GameUUID,
			GameData:   turn.GameData,
			GameDataID: dataID,
		},
	}
	for _, peer := range notify {
		h.registry.Send(peer, update)
	}
	return nil
}

// sendToAll fans one event out to a list of accounts.
func (h *Handler) sendToAll(accounts []uuid.UUID, event ws.Event) {
	for _, target := range accounts {
		h.registry.Send(target, event)
	}
}
