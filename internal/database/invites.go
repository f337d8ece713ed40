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
)

// CreateInvite invites a friend into the caller's lobby. The caller must
// be in the lobby and the target must be a confirmed friend who is not in
// a lobby already and not yet invited to this one. Returns the invite and
// the lobby name for the notification.
func (db *DB) CreateInvite(ctx context.Context, from, to, lobby uuid.UUID) (*models.Invite, string, error) {
	if from == to {
		return nil, "", ErrSelfReference
	}
	invite := &models.Invite{
		UUID:      uuid.New(),
		From:      from,
		To:        to,
		Lobby:     lobby,
		CreatedAt: time.Now().UTC(),
	}
	var lobbyName string
	err := timed("insert", "invites", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var owner uuid.UUID
		err = tx.QueryRowContext(ctx,
			`SELECT owner, name FROM lobbies WHERE uuid = ?`, lobby).
			Scan(&owner, &lobbyName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading lobby: %w", err)
		}

		if owner != from {
			var n int
			err = tx.QueryRowContext(ctx,
				`SELECT count(*) FROM lobby_members WHERE lobby = ? AND player = ?`,
				lobby, from).Scan(&n)
			if err != nil {
				return fmt.Errorf("checking lobby membership: %w", err)
			}
			if n == 0 {
				return ErrNotLobbyMember
			}
		}

		var friends int
		err = tx.QueryRowContext(ctx,
			`SELECT count(*) FROM friends
			 WHERE from_account = ? AND to_account = ? AND NOT is_request`,
			from, to).Scan(&friends)
		if err != nil {
			return fmt.Errorf("checking friendship: %w", err)
		}
		if friends == 0 {
			return ErrNotFriends
		}

		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT count(*) FROM invites WHERE lobby = ? AND to_account = ?`,
			lobby, to).Scan(&existing)
		if err != nil {
			return fmt.Errorf("checking existing invite: %w", err)
		}
		if existing > 0 {
			return ErrInviteExists
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO invites (uuid, from_account, to_account, lobby, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			invite.UUID, from, to, lobby, invite.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting invite: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, "", err
	}
	return invite, lobbyName, nil
}

// GetInvites lists the invites addressed to the account.
func (db *DB) GetInvites(ctx context.Context, account uuid.UUID) ([]models.InviteResponse, error) {
	invites := []models.InviteResponse{}
	err := timed("select", "invites", func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT i.uuid, i.created_at,
			       a.uuid, a.username, a.display_name,
			       l.uuid, l.name
			FROM invites i
			JOIN accounts a ON a.uuid = i.from_account
			JOIN lobbies l ON l.uuid = i.lobby
			WHERE i.to_account = ?
			ORDER BY i.created_at`, account)
		if err != nil {
			return fmt.Errorf("listing invites: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var inv models.InviteResponse
			err := rows.Scan(&inv.UUID, &inv.CreatedAt,
				&inv.From.UUID, &inv.From.Username, &inv.From.DisplayName,
				&inv.LobbyUUID, &inv.LobbyName)
			if err != nil {
				return fmt.Errorf("scanning invite: %w", err)
			}
			invites = append(invites, inv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}

// DeleteInvite withdraws (sender) or declines (recipient) an invite.
func (db *DB) DeleteInvite(ctx context.Context, invite uuid.UUID, caller uuid.UUID) error {
	return timed("delete", "invites", func() error {
		result, err := db.conn.ExecContext(ctx,
			`DELETE FROM invites WHERE uuid = ? AND (from_account = ? OR to_account = ?)`,
			invite, caller, caller)
		if err != nil {
			return fmt.Errorf("deleting invite: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
