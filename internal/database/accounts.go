// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/models"
	"github.com/tabula-srv/tabula/internal/ws"
)

const accountColumns = `uuid, username, display_name, password_hash, last_login, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.UUID, &a.Username, &a.DisplayName, &a.PasswordHash,
		&a.LastLogin, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	return &a, nil
}

// CreateAccount registers a new account. The username must be unique.
func (db *DB) CreateAccount(ctx context.Context, username, displayName, passwordHash string) (*models.Account, error) {
	account := &models.Account{
		UUID:         uuid.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	err := timed("insert", "accounts", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var n int
		err = tx.QueryRowContext(ctx,
			`SELECT count(*) FROM accounts WHERE username = ?`, username).Scan(&n)
		if err != nil {
			return fmt.Errorf("checking username: %w", err)
		}
		if n > 0 {
			return ErrUsernameTaken
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO accounts (uuid, username, display_name, password_hash, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			account.UUID, account.Username, account.DisplayName,
			account.PasswordHash, account.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting account: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount loads an account by uuid.
func (db *DB) GetAccount(ctx context.Context, account uuid.UUID) (*models.Account, error) {
	var result *models.Account
	err := timed("select", "accounts", func() error {
		row := db.conn.QueryRowContext(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE uuid = ?`, account)
		var err error
		result, err = scanAccount(row)
		return err
	})
	return result, err
}

// GetAccountByUsername loads an account by its unique username.
func (db *DB) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var result *models.Account
	err := timed("select", "accounts", func() error {
		row := db.conn.QueryRowContext(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
		var err error
		result, err = scanAccount(row)
		return err
	})
	return result, err
}

// UpdateAccount changes username and/or display name. A nil field is left
// untouched. Returns the updated account.
func (db *DB) UpdateAccount(ctx context.Context, account uuid.UUID, username, displayName *string) (*models.Account, error) {
	var result *models.Account
	err := timed("update", "accounts", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if username != nil {
			var n int
			err = tx.QueryRowContext(ctx,
				`SELECT count(*) FROM accounts WHERE username = ? AND uuid <> ?`,
				*username, account).Scan(&n)
			if err != nil {
				return fmt.Errorf("checking username: %w", err)
			}
			if n > 0 {
				return ErrUsernameTaken
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET username = ? WHERE uuid = ?`, *username, account); err != nil {
				return fmt.Errorf("updating username: %w", err)
			}
		}
		if displayName != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET display_name = ? WHERE uuid = ?`, *displayName, account); err != nil {
				return fmt.Errorf("updating display name: %w", err)
			}
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE uuid = ?`, account)
		result, err = scanAccount(row)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	return result, err
}

// SetPassword replaces the stored password hash.
func (db *DB) SetPassword(ctx context.Context, account uuid.UUID, passwordHash string) error {
	return timed("update", "accounts", func() error {
		result, err := db.conn.ExecContext(ctx,
			`UPDATE accounts SET password_hash = ? WHERE uuid = ?`, passwordHash, account)
		if err != nil {
			return fmt.Errorf("setting password: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// TouchLastLogin records a successful login.
func (db *DB) TouchLastLogin(ctx context.Context, account uuid.UUID) error {
	return timed("update", "accounts", func() error {
		_, err := db.conn.ExecContext(ctx,
			`UPDATE accounts SET last_login = current_timestamp WHERE uuid = ?`, account)
		if err != nil {
			return fmt.Errorf("touching last login: %w", err)
		}
		return nil
	})
}

// DeleteAccountResult lists what an account deletion touched, for the
// follow-up notifications.
type DeleteAccountResult struct {
	Cleanup *ws.CleanupResult
	Friends []uuid.UUID
}

// DeleteAccount removes the account and everything hanging off it in one
// transaction: the owned lobby, lobby memberships, friendships with
// their chat rooms, invites in both directions and game memberships.
func (db *DB) DeleteAccount(ctx context.Context, account uuid.UUID) (*DeleteAccountResult, error) {
	result := &DeleteAccountResult{Cleanup: &ws.CleanupResult{}}
	err := timed("delete", "accounts", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		err = tx.QueryRowContext(ctx,
			`SELECT uuid, username, display_name FROM accounts WHERE uuid = ?`, account).
			Scan(&result.Cleanup.Account.UUID, &result.Cleanup.Account.Username,
				&result.Cleanup.Account.DisplayName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading account: %w", err)
		}

		if err := db.closeOwnedLobbyTx(ctx, tx, account, result.Cleanup); err != nil {
			return err
		}
		if err := db.leaveMemberLobbiesTx(ctx, tx, account, result.Cleanup); err != nil {
			return err
		}
		games, err := gamesWithPeersTx(ctx, tx, account)
		if err != nil {
			return err
		}
		result.Cleanup.Games = games

		// Friendships go away with their private chat rooms.
		rows, err := tx.QueryContext(ctx, `
			SELECT to_account, chat_room FROM friends
			WHERE from_account = ? AND NOT is_request`, account)
		if err != nil {
			return fmt.Errorf("listing friendships: %w", err)
		}
		type friendship struct {
			other    uuid.UUID
			chatRoom *uuid.UUID
		}
		var friendships []friendship
		for rows.Next() {
			var f friendship
			if err := rows.Scan(&f.other, &f.chatRoom); err != nil {
				rows.Close()
				return fmt.Errorf("scanning friendship: %w", err)
			}
			friendships = append(friendships, f)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, f := range friendships {
			result.Friends = append(result.Friends, f.other)
			if f.chatRoom != nil {
				if err := deleteChatRoomTx(ctx, tx, *f.chatRoom); err != nil {
					return err
				}
			}
		}

		for _, stmt := range []string{
			`DELETE FROM friends WHERE from_account = ? OR to_account = ?`,
			`DELETE FROM invites WHERE from_account = ? OR to_account = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, account, account); err != nil {
				return fmt.Errorf("deleting account relations: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM game_members WHERE player = ?`, account); err != nil {
			return fmt.Errorf("deleting game memberships: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM accounts WHERE uuid = ?`, account); err != nil {
			return fmt.Errorf("deleting account: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FriendUUIDs returns the accounts holding a confirmed friendship with
// the given account, for accountUpdated fan-out.
func (db *DB) FriendUUIDs(ctx context.Context, account uuid.UUID) ([]uuid.UUID, error) {
	var friends []uuid.UUID
	err := timed("select", "friends", func() error {
		rows, err := db.conn.QueryContext(ctx,
			`SELECT to_account FROM friends WHERE from_account = ? AND NOT is_request`, account)
		if err != nil {
			return fmt.Errorf("listing friends: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var friend uuid.UUID
			if err := rows.Scan(&friend); err != nil {
				return fmt.Errorf("scanning friend: %w", err)
			}
			friends = append(friends, friend)
		}
		return rows.Err()
	})
	return friends, err
}
