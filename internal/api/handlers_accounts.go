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

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if !validated(w, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password, h.cfg.Security.BcryptCost)
	if err != nil {
		writeDBError(w, err)
		return
	}
	created, err := h.db.CreateAccount(r.Context(), req.Username, req.DisplayName, hash)
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusCreated, created.Response())
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.db.GetAccount(r.Context(), account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, loaded)
}

// UpdateMe changes username and/or display name and notifies friends
// with accountUpdated.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if req.Username == nil && req.DisplayName == nil {
		badRequest(w, "empty_update", "at least one field must be set")
		return
	}
	if !validated(w, &req) {
		return
	}

	me := account(r)
	updated, err := h.db.UpdateAccount(r.Context(), me, req.Username, req.DisplayName)
	if err != nil {
		writeDBError(w, err)
		return
	}

	friends, err := h.db.FriendUUIDs(r.Context(), me)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to list friends for account update fan-out")
	} else {
		h.sendToAll(friends, ws.Event{
			Type:    ws.EventTypeAccountUpdated,
			Content: ws.AccountUpdatedContent{Account: updated.Response()},
		})
	}
	respond(w, http.StatusOK, updated.Response())
}

// SetPassword verifies the old password, stores the new hash and
// invalidates every other session of the account.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.SetPasswordRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if !validated(w, &req) {
		return
	}

	me := account(r)
	loaded, err := h.db.GetAccount(r.Context(), me)
	if err != nil {
		writeDBError(w, err)
		return
	}
	if !auth.VerifyPassword(loaded.PasswordHash, req.OldPassword) {
		writeError(w, http.StatusForbidden, "wrong_old_password", "old password does not match")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, h.cfg.Security.BcryptCost)
	if err != nil {
		writeDBError(w, err)
		return
	}
	if err := h.db.SetPassword(r.Context(), me, hash); err != nil {
		writeDBError(w, err)
		return
	}

	// Every session is invalidated; the caller gets a fresh one so only
	// other devices have to log in again.
	if err := h.sessions.DeleteAccount(r.Context(), me); err != nil {
		logging.Warn().Err(err).Msg("Failed to invalidate sessions after password change")
	} else if session, err := h.sessions.Create(r.Context(), me); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookie,
			Value:    session.Token,
			Path:     "/",
			Expires:  session.ExpiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		respond(w, http.StatusOK, loginResponse{Token: session.Token, Account: loaded.Response()})
		return
	}
	respond(w, http.StatusOK, nil)
}

// DeleteMe deletes the account with everything attached to it, closes
// its websocket connections and notifies affected players and friends.
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	me := account(r)
	result, err := h.db.DeleteAccount(r.Context(), me)
	if err != nil {
		writeDBError(w, err)
		return
	}
	if err := h.sessions.DeleteAccount(r.Context(), me); err != nil {
		logging.Warn().Err(err).Msg("Failed to delete sessions of deleted account")
	}
	h.registry.Close(me)

	if result.Cleanup.ClosedLobby != nil {
		h.sendToAll(result.Cleanup.ClosedLobby.Members, ws.Event{
			Type:    ws.EventTypeLobbyClosed,
			Content: ws.LobbyClosedContent{LobbyUUID: result.Cleanup.ClosedLobby.LobbyUUID},
		})
	}
	for _, left := range result.Cleanup.LeftLobbies {
		h.sendToAll(left.Members, ws.Event{
			Type: ws.EventTypeLobbyLeave,
			Content: ws.LobbyMemberContent{
				LobbyUUID: left.LobbyUUID,
				Player:    result.Cleanup.Account,
			},
		})
	}
	for _, game := range result.Cleanup.Games {
		h.sendToAll(game.Players, ws.Event{
			Type: ws.EventTypeClientDisconnected,
			Content: ws.ClientStateContent{
				GameUUID: game.GameUUID,
				UUID:     me,
			},
		})
	}
	h.sendToAll(result.Friends, ws.Event{
		Type: ws.EventTypeFriendshipChanged,
		Content: ws.FriendshipChangedContent{
			From:   result.Cleanup.Account,
			Status: ws.FriendshipDeleted,
		},
	})

	respond(w, http.StatusOK, nil)
}

// GetAccount returns the public view of any account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed account uuid")
		return
	}
	loaded, err := h.db.GetAccount(r.Context(), id)
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, loaded.Response())
}

// LookupAccount resolves a username to its public view.
func (h *Handler) LookupAccount(w http.ResponseWriter, r *http.Request) {
	var req models.LookupAccountRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if !validated(w, &req) {
		return
	}
	loaded, err := h.db.GetAccountByUsername(r.Context(), req.Username)
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, loaded.Response())
}
