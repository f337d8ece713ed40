// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong password!") {
		t.Error("wrong password accepted")
	}
	if VerifyPassword("not a bcrypt hash", "anything") {
		t.Error("malformed hash accepted")
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("short", bcrypt.MinCost); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()
	account := uuid.New()

	session, err := store.Create(ctx, account)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(session.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(session.Token))
	}

	got, err := store.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Account != account {
		t.Errorf("account = %s, want %s", got.Account, account)
	}

	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(-time.Second)
	defer store.Close()
	ctx := context.Background()

	session, err := store.Create(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Get(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreDeleteAccount(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()
	account, other := uuid.New(), uuid.New()

	first, _ := store.Create(ctx, account)
	second, _ := store.Create(ctx, account)
	kept, _ := store.Create(ctx, other)

	if err := store.DeleteAccount(ctx, account); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	for _, token := range []string{first.Token, second.Token} {
		if _, err := store.Get(ctx, token); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("session survived DeleteAccount: err = %v", err)
		}
	}
	if _, err := store.Get(ctx, kept.Token); err != nil {
		t.Errorf("unrelated session deleted: %v", err)
	}
}

func TestBadgerStoreLifecycle(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	account := uuid.New()

	session, err := store.Create(ctx, account)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Account != account {
		t.Errorf("account = %s, want %s", got.Account, account)
	}

	if err := store.DeleteAccount(ctx, account); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := store.Get(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after DeleteAccount: err = %v, want ErrSessionNotFound", err)
	}
}

func TestRequireAuth(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	account := uuid.New()
	session, err := store.Create(context.Background(), account)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var seen uuid.UUID
	handler := RequireAuth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		prepare    func(*http.Request)
		wantStatus int
	}{
		{
			name: "bearer header",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+session.Token)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "session cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookie, Value: session.Token})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing token",
			prepare:    func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer deadbeef")
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && seen != account {
				t.Errorf("context account = %s, want %s", seen, account)
			}
		})
	}
}

// wrappingStore wraps ErrSessionNotFound the way a backend adding call
// context would, to make sure the middleware matches the sentinel with
// errors.Is rather than equality.
type wrappingStore struct{}

func (wrappingStore) Create(context.Context, uuid.UUID) (*Session, error) {
	return nil, errors.New("not implemented")
}

func (wrappingStore) Get(context.Context, string) (*Session, error) {
	return nil, fmt.Errorf("looking up session: %w", ErrSessionNotFound)
}

func (wrappingStore) Delete(context.Context, string) error           { return nil }
func (wrappingStore) DeleteAccount(context.Context, uuid.UUID) error { return nil }
func (wrappingStore) Close() error                                   { return nil }

func TestRequireAuthWrappedNotFound(t *testing.T) {
	handler := RequireAuth(wrappingStore{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with unknown session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
