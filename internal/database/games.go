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

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/models"
	"github.com/tabula-srv/tabula/internal/ws"
)

// GetGamesForPlayer lists the games the account plays in, without the
// state blobs.
func (db *DB) GetGamesForPlayer(ctx context.Context, account uuid.UUID) ([]models.GameSummary, error) {
	games := []models.GameSummary{}
	err := timed("select", "games", func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT g.uuid, g.name, g.data_id, g.max_players, g.chat_room, g.updated_at
			FROM games g
			JOIN game_members gm ON gm.game = g.uuid
			WHERE gm.player = ?
			ORDER BY g.updated_at DESC`, account)
		if err != nil {
			return fmt.Errorf("listing games: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var g models.GameSummary
			err := rows.Scan(&g.UUID, &g.Name, &g.DataID, &g.MaxPlayers,
				&g.ChatRoomUUID, &g.UpdatedAt)
			if err != nil {
				return fmt.Errorf("scanning game: %w", err)
			}
			games = append(games, g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}

// GetGame loads a game with its state blob and players. The caller must
// be a member.
func (db *DB) GetGame(ctx context.Context, game uuid.UUID, account uuid.UUID) (*models.GameResponse, error) {
	result := &models.GameResponse{Players: []models.AccountResponse{}}
	err := timed("select", "games", func() error {
		var gameData *string
		err := db.conn.QueryRowContext(ctx, `
			SELECT g.uuid, g.name, g.data_id, g.game_data, g.max_players,
			       g.chat_room, g.updated_at,
			       u.uuid, u.username, u.display_name
			FROM games g
			JOIN accounts u ON u.uuid = g.updated_by
			WHERE g.uuid = ?`, game).
			Scan(&result.UUID, &result.Name, &result.DataID, &gameData,
				&result.MaxPlayers, &result.ChatRoomUUID, &result.UpdatedAt,
				&result.UpdatedBy.UUID, &result.UpdatedBy.Username,
				&result.UpdatedBy.DisplayName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading game: %w", err)
		}
		if gameData != nil {
			result.GameData = json.RawMessage(*gameData)
		}

		rows, err := db.conn.QueryContext(ctx, `
			SELECT a.uuid, a.username, a.display_name
			FROM game_members gm
			JOIN accounts a ON a.uuid = gm.player
			WHERE gm.game = ?`, game)
		if err != nil {
			return fmt.Errorf("listing game players: %w", err)
		}
		defer rows.Close()

		isMember := false
		for rows.Next() {
			var p models.AccountResponse
			if err := rows.Scan(&p.UUID, &p.Username, &p.DisplayName); err != nil {
				return fmt.Errorf("scanning game player: %w", err)
			}
			if p.UUID == account {
				isMember = true
			}
			result.Players = append(result.Players, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if !isMember {
			return ErrNotGameMember
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateGameState stores a new state blob, bumps the data version and
// returns the co-players to notify. The uploader must be a member.
func (db *DB) UpdateGameState(ctx context.Context, game uuid.UUID, player uuid.UUID, data json.RawMessage) (dataID int64, notify []uuid.UUID, err error) {
	err = timed("update", "games", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx,
			`SELECT player FROM game_members WHERE game = ?`, game)
		if err != nil {
			return fmt.Errorf("listing game players: %w", err)
		}
		isMember := false
		for rows.Next() {
			var member uuid.UUID
			if err := rows.Scan(&member); err != nil {
				rows.Close()
				return fmt.Errorf("scanning game player: %w", err)
			}
			if member == player {
				isMember = true
				continue
			}
			notify = append(notify, member)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(notify) == 0 && !isMember {
			return ErrNotFound
		}
		if !isMember {
			return ErrNotGameMember
		}

		err = tx.QueryRowContext(ctx, `
			UPDATE games
			SET game_data = ?, data_id = data_id + 1,
			    updated_by = ?, updated_at = current_timestamp
			WHERE uuid = ?
			RETURNING data_id`, string(data), player, game).Scan(&dataID)
		if err != nil {
			return fmt.Errorf("updating game state: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, nil, err
	}
	return dataID, notify, nil
}

// GamesWithPeers lists every game the account plays in together with the
// co-players, for connection state change fan-out.
func (db *DB) GamesWithPeers(ctx context.Context, account uuid.UUID) ([]ws.GameMembers, error) {
	var games []ws.GameMembers
	err := timed("select", "game_members", func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT peers.game, peers.player
			FROM game_members mine
			JOIN game_members peers ON peers.game = mine.game AND peers.player <> mine.player
			WHERE mine.player = ?
			ORDER BY peers.game`, account)
		if err != nil {
			return fmt.Errorf("listing game peers: %w", err)
		}
		defer rows.Close()

		byGame := map[uuid.UUID]int{}
		for rows.Next() {
			var game, peer uuid.UUID
			if err := rows.Scan(&game, &peer); err != nil {
				return fmt.Errorf("scanning game peer: %w", err)
			}
			idx, ok := byGame[game]
			if !ok {
				idx = len(games)
				byGame[game] = idx
				games = append(games, ws.GameMembers{GameUUID: game})
			}
			games[idx].Players = append(games[idx].Players, peer)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}
