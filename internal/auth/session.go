// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/config"
)

// ErrSessionNotFound means the token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is one authenticated login. The token is an opaque 256-bit
// random value, returned by the login endpoint and carried by clients as
// a bearer token or cookie.
type Session struct {
	Token     string
	Account   uuid.UUID
	ExpiresAt time.Time
}

// Expired reports whether the session is past its lifetime.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionStore persists sessions. Implementations must treat expired
// sessions as absent.
type SessionStore interface {
	// Create mints a new session for the account.
	Create(ctx context.Context, account uuid.UUID) (*Session, error)
	// Get resolves a token. Returns ErrSessionNotFound for unknown or
	// expired tokens.
	Get(ctx context.Context, token string) (*Session, error)
	// Delete invalidates one session (logout).
	Delete(ctx context.Context, token string) error
	// DeleteAccount invalidates every session of an account (password
	// change, account deletion).
	DeleteAccount(ctx context.Context, account uuid.UUID) error
	// Close releases store resources.
	Close() error
}

// NewSessionStore builds the configured store: in-process memory for
// single-node setups and tests, badger for sessions that survive restarts.
func NewSessionStore(cfg config.SecurityConfig) (SessionStore, error) {
	switch cfg.SessionStore {
	case "memory":
		return NewMemoryStore(cfg.SessionTimeout), nil
	case "badger":
		return NewBadgerStore(cfg.SessionStorePath, cfg.SessionTimeout)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// newToken mints a 256-bit random token, hex encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
