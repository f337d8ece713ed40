// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memorySweepInterval = 5 * time.Minute

// MemoryStore keeps sessions in process memory. Sessions vanish on
// restart, which is fine for development and single-node deployments
// where clients simply log in again.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	lifetime time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates the store and starts its expiry sweeper.
func NewMemoryStore(lifetime time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]Session),
		lifetime: lifetime,
		stop:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Create(_ context.Context, account uuid.UUID) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	session := Session{
		Token:     token,
		Account:   account,
		ExpiresAt: time.Now().Add(s.lifetime),
	}
	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()
	return &session, nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Expired() {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, account uuid.UUID) error {
	s.mu.Lock()
	for token, session := range s.sessions {
		if session.Account == account {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// sweep drops expired sessions so idle logins do not pile up.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(memorySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for token, session := range s.sessions {
				if now.After(session.ExpiresAt) {
					delete(s.sessions, token)
				}
			}
			s.mu.Unlock()
		}
	}
}
