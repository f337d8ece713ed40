// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/logging"
)

// SessionCookie is the cookie carrying the session token for browser
// clients; API clients use an Authorization bearer header instead.
const SessionCookie = "tabula_session"

type contextKey string

const (
	accountKey contextKey = "account"
	tokenKey   contextKey = "token"
)

// TokenFromRequest extracts the session token from the Authorization
// header or the session cookie. Returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid session and attaches the
// account uuid and token to the request context.
func RequireAuth(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				unauthorized(w)
				return
			}
			session, err := store.Get(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrSessionNotFound) {
					logging.Error().Err(err).Msg("Session lookup failed")
				}
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), accountKey, session.Account)
			ctx = context.WithValue(ctx, tokenKey, session.Token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext returns the authenticated account uuid set by
// RequireAuth.
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	account, ok := ctx.Value(accountKey).(uuid.UUID)
	return account, ok
}

// TokenFromContext returns the session token set by RequireAuth.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "valid session required",
	})
}
