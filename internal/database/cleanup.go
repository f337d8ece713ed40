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

	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/ws"
)

// CleanupDisconnect repairs persistent state after an account's last
// connection died, all in one transaction:
//
//  1. A lobby the account owned is closed outright, members and invites
//     and chat room included.
//  2. Lobbies the account sat in as a member lose that membership.
//  3. The games the account plays in are collected so co-players can be
//     told about the disconnect.
//
// Either everything commits or nothing does; a failure leaves the old
// state intact for a later retry. Implements ws.Cleaner.
func (db *DB) CleanupDisconnect(ctx context.Context, account uuid.UUID) (*ws.CleanupResult, error) {
	result := &ws.CleanupResult{}
	err := timed("cleanup", "lobbies", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		err = tx.QueryRowContext(ctx,
			`SELECT uuid, username, display_name FROM accounts WHERE uuid = ?`, account).
			Scan(&result.Account.UUID, &result.Account.Username, &result.Account.DisplayName)
		if errors.Is(err, sql.ErrNoRows) {
			// Account deleted while the connection was open; nothing to repair.
			return tx.Commit()
		}
		if err != nil {
			return fmt.Errorf("loading account: %w", err)
		}

		if err := db.closeOwnedLobbyTx(ctx, tx, account, result); err != nil {
			return err
		}
		if err := db.leaveMemberLobbiesTx(ctx, tx, account, result); err != nil {
			return err
		}

		games, err := gamesWithPeersTx(ctx, tx, account)
		if err != nil {
			return err
		}
		result.Games = games

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// closeOwnedLobbyTx closes the lobby the account owns, if any. Ownership
// is exclusive, so a single row lookup suffices.
func (db *DB) closeOwnedLobbyTx(ctx context.Context, tx *sql.Tx, account uuid.UUID, result *ws.CleanupResult) error {
	var lobby, chatRoom uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT uuid, chat_room FROM lobbies WHERE owner = ?`, account).
		Scan(&lobby, &chatRoom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading owned lobby: %w", err)
	}

	members, err := lobbyMembersTx(ctx, tx, lobby)
	if err != nil {
		return err
	}
	if err := closeLobbyTx(ctx, tx, lobby, chatRoom); err != nil {
		return err
	}
	result.ClosedLobby = &ws.ClosedLobby{LobbyUUID: lobby, Members: members}
	return nil
}

// leaveMemberLobbiesTx removes the account from every lobby it sits in as
// a non-owner member and records who is left to notify.
func (db *DB) leaveMemberLobbiesTx(ctx context.Context, tx *sql.Tx, account uuid.UUID, result *ws.CleanupResult) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT l.uuid, l.owner, l.chat_room
		FROM lobbies l
		JOIN lobby_members m ON m.lobby = l.uuid
		WHERE m.player = ?`, account)
	if err != nil {
		return fmt.Errorf("listing member lobbies: %w", err)
	}

	type memberLobby struct {
		lobby, owner, chatRoom uuid.UUID
	}
	var lobbies []memberLobby
	for rows.Next() {
		var ml memberLobby
		if err := rows.Scan(&ml.lobby, &ml.owner, &ml.chatRoom); err != nil {
			rows.Close()
			return fmt.Errorf("scanning member lobby: %w", err)
		}
		lobbies = append(lobbies, ml)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, ml := range lobbies {
		if err := removeLobbyMemberTx(ctx, tx, ml.lobby, ml.chatRoom, account); err != nil {
			return err
		}
		remaining, err := lobbyMembersTx(ctx, tx, ml.lobby)
		if err != nil {
			return err
		}
		result.LeftLobbies = append(result.LeftLobbies, ws.LeftLobby{
			LobbyUUID: ml.lobby,
			Members:   append([]uuid.UUID{ml.owner}, remaining...),
		})
	}
	return nil
}

// gamesWithPeersTx is GamesWithPeers inside the cleanup transaction, so
// the peer lists are consistent with the lobby repairs.
func gamesWithPeersTx(ctx context.Context, tx *sql.Tx, account uuid.UUID) ([]ws.GameMembers, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT peers.game, peers.player
		FROM game_members mine
		JOIN game_members peers ON peers.game = mine.game AND peers.player <> mine.player
		WHERE mine.player = ?
		ORDER BY peers.game`, account)
	if err != nil {
		return nil, fmt.Errorf("listing game peers: %w", err)
	}
	defer rows.Close()

	var games []ws.GameMembers
	byGame := map[uuid.UUID]int{}
	for rows.Next() {
		var game, peer uuid.UUID
		if err := rows.Scan(&game, &peer); err != nil {
			return nil, fmt.Errorf("scanning game peer: %w", err)
		}
		idx, ok := byGame[game]
		if !ok {
			idx = len(games)
			byGame[game] = idx
			games = append(games, ws.GameMembers{GameUUID: game})
		}
		games[idx].Players = append(games[idx].Players, peer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return games, nil
}
