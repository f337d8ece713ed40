// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/models"
	"github.com/tabula-srv/tabula/internal/ws"
)

// GetGames lists the caller's games without state blobs.
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.db.GetGamesForPlayer(r.Context(), account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string][]models.GameSummary{"games": games})
}

// GetGame returns one game including its state blob.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed game uuid")
		return
	}
	loaded, err := h.db.GetGame(r.Context(), game, account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, loaded)
}

// UploadGameState stores a new state blob via REST. Same semantics as the
// websocket finishedTurn path: the version bumps and co-players get
// updateGameData.
func (h *Handler) UploadGameState(w http.ResponseWriter, r *http.Request) {
	game, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed game uuid")
		return
	}
	var req models.UploadGameStateRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if len(req.GameData) == 0 {
		badRequest(w, "empty_game_data", "game data must not be empty")
		return
	}

	turn := &ws.FinishedTurn{GameUUID: game, GameData: req.GameData}
	if err := h.HandleFinishedTurn(r.Context(), account(r), turn); err != nil {
		writeDBError(w, err)
		return
	}

	loaded, err := h.db.GetGame(r.Context(), game, account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, models.UploadGameStateResponse{DataID: loaded.DataID})
}
