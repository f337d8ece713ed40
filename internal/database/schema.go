// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package database

import (
	"context"
	"fmt"
)

// schemaStatements creates all tables. Every entity is keyed by UUID;
// deletes cascade in application code inside transactions, not via
// foreign keys, because the cleanup transaction needs the member lists
// before deleting them anyway.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		uuid UUID PRIMARY KEY,
		username VARCHAR NOT NULL UNIQUE,
		display_name VARCHAR NOT NULL,
		password_hash VARCHAR NOT NULL,
		last_login TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
		uuid UUID PRIMARY KEY,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS chat_room_members (
		uuid UUID PRIMARY KEY,
		chat_room UUID NOT NULL,
		member UUID NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS chat_room_messages (
		uuid UUID PRIMARY KEY,
		chat_room UUID NOT NULL,
		sender UUID NOT NULL,
		message VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS friends (
		uuid UUID PRIMARY KEY,
		is_request BOOLEAN NOT NULL,
		from_account UUID NOT NULL,
		to_account UUID NOT NULL,
		chat_room UUID,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS lobbies (
		uuid UUID PRIMARY KEY,
		name VARCHAR NOT NULL,
		owner UUID NOT NULL,
		password_hash VARCHAR,
		max_players INTEGER NOT NULL,
		chat_room UUID NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS lobby_members (
		uuid UUID PRIMARY KEY,
		lobby UUID NOT NULL,
		player UUID NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS invites (
		uuid UUID PRIMARY KEY,
		from_account UUID NOT NULL,
		to_account UUID NOT NULL,
		lobby UUID NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		uuid UUID PRIMARY KEY,
		name VARCHAR NOT NULL,
		data_id BIGINT NOT NULL DEFAULT 0,
		game_data VARCHAR,
		max_players INTEGER NOT NULL,
		chat_room UUID NOT NULL,
		updated_by UUID NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS game_members (
		uuid UUID PRIMARY KEY,
		game UUID NOT NULL,
		player UUID NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_room_members_room ON chat_room_members (chat_room)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_room_members_member ON chat_room_members (member)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_room_messages_room ON chat_room_messages (chat_room)`,
	`CREATE INDEX IF NOT EXISTS idx_friends_from ON friends (from_account)`,
	`CREATE INDEX IF NOT EXISTS idx_friends_to ON friends (to_account)`,
	`CREATE INDEX IF NOT EXISTS idx_lobby_members_lobby ON lobby_members (lobby)`,
	`CREATE INDEX IF NOT EXISTS idx_lobby_members_player ON lobby_members (player)`,
	`CREATE INDEX IF NOT EXISTS idx_invites_to ON invites (to_account)`,
	`CREATE INDEX IF NOT EXISTS idx_game_members_game ON game_members (game)`,
	`CREATE INDEX IF NOT EXISTS idx_game_members_player ON game_members (player)`,
}

func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
