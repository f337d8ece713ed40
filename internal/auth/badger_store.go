// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package auth

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/logging"
)

const (
	sessionPrefix    = "session:"
	badgerGCInterval = 10 * time.Minute
	badgerGCRatio    = 0.5
)

// BadgerStore persists sessions in an embedded badger database so logins
// survive server restarts. Badger's native TTL expires the entries; the
// value additionally records the expiry so Get can report it.
type BadgerStore struct {
	db       *badger.DB
	lifetime time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewBadgerStore opens (or creates) the store at path.
func NewBadgerStore(path string, lifetime time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening session store at %s: %w", path, err)
	}
	s := &BadgerStore{
		db:       db,
		lifetime: lifetime,
		stop:     make(chan struct{}),
	}
	go s.valueLogGC()
	return s, nil
}

// encodeSession packs account uuid and expiry into the entry value.
func encodeSession(account uuid.UUID, expiresAt time.Time) []byte {
	buf := make([]byte, 24)
	copy(buf, account[:])
	binary.BigEndian.PutUint64(buf[16:], uint64(expiresAt.Unix()))
	return buf
}

func decodeSession(token string, value []byte) (*Session, error) {
	if len(value) != 24 {
		return nil, fmt.Errorf("corrupt session entry of %d bytes", len(value))
	}
	var account uuid.UUID
	copy(account[:], value[:16])
	return &Session{
		Token:     token,
		Account:   account,
		ExpiresAt: time.Unix(int64(binary.BigEndian.Uint64(value[16:])), 0),
	}, nil
}

func (s *BadgerStore) Create(_ context.Context, account uuid.UUID) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.lifetime)
	entry := badger.NewEntry([]byte(sessionPrefix+token), encodeSession(account, expiresAt)).
		WithTTL(s.lifetime)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &Session{Token: token, Account: account, ExpiresAt: expiresAt}, nil
}

func (s *BadgerStore) Get(_ context.Context, token string) (*Session, error) {
	var session *Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionPrefix + token))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			session, err = decodeSession(token, value)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if session.Expired() {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *BadgerStore) Delete(_ context.Context, token string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionPrefix + token))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *BadgerStore) DeleteAccount(_ context.Context, account uuid.UUID) error {
	// Full prefix scan; sessions are few and this runs only on password
	// change or account deletion.
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var match bool
			err := item.Value(func(value []byte) error {
				match = len(value) == 24 && uuid.UUID(value[:16]) == account
				return nil
			})
			if err != nil {
				return err
			}
			if match {
				if err := txn.Delete(item.KeyCopy(nil)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting account sessions: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.db.Close()
}

// valueLogGC reclaims space from expired sessions in the background.
func (s *BadgerStore) valueLogGC() {
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(badgerGCRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("Session store value log GC failed")
			}
		}
	}
}
