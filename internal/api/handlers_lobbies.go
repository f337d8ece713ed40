// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/auth"
	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/models"
	"github.com/tabula-srv/tabula/internal/ws"
)

// GetLobbies lists all open lobbies.
func (h *Handler) GetLobbies(w http.ResponseWriter, r *http.Request) {
	lobbies, err := h.db.GetLobbies(r.Context())
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string][]models.LobbyResponse{"lobbies": lobbies})
}

// GetLobby returns one lobby.
func (h *Handler) GetLobby(w http.ResponseWriter, r *http.Request) {
	lobby, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed lobby uuid")
		return
	}
	loaded, err := h.db.GetLobby(r.Context(), lobby)
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, loaded)
}

// CreateLobby opens a lobby with the caller as owner.
func (h *Handler) CreateLobby(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLobbyRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if !validated(w, &req) {
		return
	}

	var passwordHash *string
	if req.Password != nil && *req.Password != "" {
		hash, err := auth.HashPassword(*req.Password, h.cfg.Security.BcryptCost)
		if err != nil {
			writeDBError(w, err)
			return
		}
		passwordHash = &hash
	}

	created, err := h.db.CreateLobby(r.Context(), account(r), req.Name, passwordHash, req.MaxPlayers)
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

// JoinLobby adds the caller to a lobby and notifies the players already
// there with lobbyJoin.
func (h *Handler) JoinLobby(w http.ResponseWriter, r *http.Request) {
	lobby, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed lobby uuid")
		return
	}
	var req models.JoinLobbyRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}

	me := account(r)
	joined, err := h.db.JoinLobby(r.Context(), lobby, me, func(hash string) bool {
		return req.Password != nil && auth.VerifyPassword(hash, *req.Password)
	})
	if err != nil {
		writeDBError(w, err)
		return
	}

	h.notifyLobbyMembers(r, joined.Notify, ws.EventTypeLobbyJoin, lobby, me)
	respond(w, http.StatusOK, map[string]uuid.UUID{"chat_room_uuid": joined.ChatRoom})
}

// LeaveLobby removes the caller from a lobby. The owner leaving closes
// the lobby (lobbyClosed); everyone else triggers lobbyLeave.
func (h *Handler) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	lobby, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed lobby uuid")
		return
	}

	me := account(r)
	left, err := h.db.LeaveLobby(r.Context(), lobby, me)
	if err != nil {
		writeDBError(w, err)
		return
	}

	if left.Closed {
		h.sendToAll(left.Notify, ws.Event{
			Type:    ws.EventTypeLobbyClosed,
			Content: ws.LobbyClosedContent{LobbyUUID: lobby},
		})
	} else {
		h.notifyLobbyMembers(r, left.Notify, ws.EventTypeLobbyLeave, lobby, me)
	}
	respond(w, http.StatusOK, nil)
}

// KickPlayer removes a member on the owner's request, notifying the
// target and the remaining members with lobbyKick.
func (h *Handler) KickPlayer(w http.ResponseWriter, r *http.Request) {
	lobby, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed lobby uuid")
		return
	}
	target, err := uuid.Parse(chi.URLParam(r, "player"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed player uuid")
		return
	}

	notify, err := h.db.KickPlayer(r.Context(), lobby, account(r), target)
	if err != nil {
		writeDBError(w, err)
		return
	}

	// The kicked player hears about it too.
	h.notifyLobbyMembers(r, append(notify, target), ws.EventTypeLobbyKick, lobby, target)
	respond(w, http.StatusOK, nil)
}

// StartGame converts the lobby into a game and notifies every player
// with gameStarted.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	lobby, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed lobby uuid")
		return
	}

	started, err := h.db.StartGame(r.Context(), lobby, account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}

	h.sendToAll(started.Players, ws.Event{
		Type: ws.EventTypeGameStarted,
		Content: ws.GameStartedContent{
			GameUUID:      started.GameUUID,
			GameChatUUID:  started.GameChatUUID,
			LobbyUUID:     lobby,
			LobbyChatUUID: started.LobbyChatUUID,
		},
	})
	respond(w, http.StatusCreated, models.StartGameResponse{
		GameUUID:     started.GameUUID,
		GameChatUUID: started.GameChatUUID,
	})
}

// notifyLobbyMembers fans a lobby membership event out, resolving the
// affected player's public view once.
func (h *Handler) notifyLobbyMembers(r *http.Request, targets []uuid.UUID, eventType ws.EventType, lobby uuid.UUID, player uuid.UUID) {
	loaded, err := h.db.GetAccount(r.Context(), player)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load player for lobby event")
		return
	}
	h.sendToAll(targets, ws.Event{
		Type: eventType,
		Content: ws.LobbyMemberContent{
			LobbyUUID: lobby,
			Player:    loaded.Response(),
		},
	})
}
