// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"errors"
	"net/http"

	"github.com/tabula-srv/tabula/internal/auth"
	"github.com/tabula-srv/tabula/internal/database"
	"github.com/tabula-srv/tabula/internal/logging"
)

// errorBody is the JSON error envelope. Code is machine-readable and
// stable; Message is for humans and may change.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	respond(w, status, body)
}

func badRequest(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusBadRequest, code, message)
}

// writeDBError maps database sentinel errors to API error responses.
// Anything unmapped is a 500 with the detail kept server-side.
func writeDBError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, database.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", "username already taken")
	case errors.Is(err, database.ErrAlreadyFriends):
		writeError(w, http.StatusConflict, "already_friends", "accounts are already friends")
	case errors.Is(err, database.ErrFriendRequestPending):
		writeError(w, http.StatusConflict, "request_pending", "a friend request is already pending")
	case errors.Is(err, database.ErrNotFriends):
		writeError(w, http.StatusForbidden, "not_friends", "target is not a friend")
	case errors.Is(err, database.ErrAlreadyInLobby):
		writeError(w, http.StatusConflict, "already_in_lobby", "account is already in a lobby")
	case errors.Is(err, database.ErrLobbyFull):
		writeError(w, http.StatusConflict, "lobby_full", "lobby is full")
	case errors.Is(err, database.ErrWrongPassword):
		writeError(w, http.StatusForbidden, "wrong_password", "wrong lobby password")
	case errors.Is(err, database.ErrNotLobbyOwner):
		writeError(w, http.StatusForbidden, "not_lobby_owner", "only the lobby owner may do this")
	case errors.Is(err, database.ErrNotLobbyMember):
		writeError(w, http.StatusForbidden, "not_lobby_member", "not a member of this lobby")
	case errors.Is(err, database.ErrNotChatMember):
		writeError(w, http.StatusForbidden, "not_chat_member", "not a member of this chat room")
	case errors.Is(err, database.ErrNotGameMember):
		writeError(w, http.StatusForbidden, "not_game_member", "not a member of this game")
	case errors.Is(err, database.ErrLobbyTooSmall):
		writeError(w, http.StatusConflict, "lobby_too_small", "not enough players to start")
	case errors.Is(err, database.ErrInviteExists):
		writeError(w, http.StatusConflict, "invite_exists", "invite already exists")
	case errors.Is(err, database.ErrSelfReference):
		badRequest(w, "self_reference", "operation cannot target yourself")
	case errors.Is(err, auth.ErrPasswordTooShort):
		badRequest(w, "password_too_short", auth.ErrPasswordTooShort.Error())
	default:
		logging.Error().Err(err).Msg("Internal error")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
