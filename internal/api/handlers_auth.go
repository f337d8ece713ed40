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
	"github.com/tabula-srv/tabula/internal/models"
)

// loginResponse returns the opaque session token. The same token is also
// set as a cookie for browser clients.
type loginResponse struct {
	Token   string                 `json:"token"`
	Account models.AccountResponse `json:"account"`
}

// Login verifies credentials and issues a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if !validated(w, &req) {
		return
	}

	account, err := h.db.GetAccountByUsername(r.Context(), req.Username)
	if errors.Is(err, database.ErrNotFound) {
		// Same response as a bad password so usernames cannot be probed.
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}
	if err != nil {
		writeDBError(w, err)
		return
	}
	if !auth.VerifyPassword(account.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	session, err := h.sessions.Create(r.Context(), account.UUID)
	if err != nil {
		writeDBError(w, err)
		return
	}
	if err := h.db.TouchLastLogin(r.Context(), account.UUID); err != nil {
		logging.Warn().Err(err).Msg("Failed to record login time")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	respond(w, http.StatusOK, loginResponse{Token: session.Token, Account: account.Response()})
}

// Logout invalidates the current session and force-closes the account's
// websocket connections.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := auth.TokenFromContext(r.Context()); ok {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			logging.Warn().Err(err).Msg("Failed to delete session")
		}
	}
	h.registry.Close(account(r))

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	respond(w, http.StatusOK, nil)
}
