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

	"github.com/tabula-srv/tabula/internal/models"
)

const lobbyListQuery = `
	SELECT l.uuid, l.name, l.max_players,
	       1 + (SELECT count(*) FROM lobby_members m WHERE m.lobby = l.uuid),
	       l.password_hash IS NOT NULL,
	       o.uuid, o.username, o.display_name,
	       l.chat_room, l.created_at
	FROM lobbies l
	JOIN accounts o ON o.uuid = l.owner`

func scanLobby(row interface{ Scan(...any) error }) (*models.LobbyResponse, error) {
	var l models.LobbyResponse
	err := row.Scan(&l.UUID, &l.Name, &l.MaxPlayers, &l.CurrentPlayers,
		&l.HasPassword, &l.Owner.UUID, &l.Owner.Username, &l.Owner.DisplayName,
		&l.ChatRoomUUID, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning lobby: %w", err)
	}
	return &l, nil
}

// GetLobbies lists all open lobbies.
func (db *DB) GetLobbies(ctx context.Context) ([]models.LobbyResponse, error) {
	lobbies := []models.LobbyResponse{}
	err := timed("select", "lobbies", func() error {
		rows, err := db.conn.QueryContext(ctx, lobbyListQuery+` ORDER BY l.created_at`)
		if err != nil {
			return fmt.Errorf("listing lobbies: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			lobby, err := scanLobby(rows)
			if err != nil {
				return err
			}
			lobbies = append(lobbies, *lobby)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return lobbies, nil
}

// GetLobby loads a single lobby.
func (db *DB) GetLobby(ctx context.Context, lobby uuid.UUID) (*models.LobbyResponse, error) {
	var result *models.LobbyResponse
	err := timed("select", "lobbies", func() error {
		row := db.conn.QueryRowContext(ctx, lobbyListQuery+` WHERE l.uuid = ?`, lobby)
		var err error
		result, err = scanLobby(row)
		return err
	})
	return result, err
}

// inAnyLobbyTx reports whether the account owns or sits in any lobby.
// A player belongs to at most one lobby at a time.
func inAnyLobbyTx(ctx context.Context, tx *sql.Tx, account uuid.UUID) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM lobbies WHERE owner = ?)
		     + (SELECT count(*) FROM lobby_members WHERE player = ?)`,
		account, account).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking lobby membership: %w", err)
	}
	return n > 0, nil
}

// CreateLobby opens a lobby with the caller as owner, creating its chat
// room with the owner as first member. An account can be in only one
// lobby at a time.
func (db *DB) CreateLobby(ctx context.Context, owner uuid.UUID, name string, passwordHash *string, maxPlayers int) (*models.CreateLobbyResponse, error) {
	lobby := uuid.New()
	chatRoom := uuid.New()
	err := timed("insert", "lobbies", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		inLobby, err := inAnyLobbyTx(ctx, tx, owner)
		if err != nil {
			return err
		}
		if inLobby {
			return ErrAlreadyInLobby
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_rooms (uuid) VALUES (?)`, chatRoom); err != nil {
			return fmt.Errorf("creating lobby chat room: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_room_members (uuid, chat_room, member) VALUES (?, ?, ?)`,
			uuid.New(), chatRoom, owner); err != nil {
			return fmt.Errorf("adding owner to lobby chat: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lobbies (uuid, name, owner, password_hash, max_players, chat_room)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			lobby, name, owner, passwordHash, maxPlayers, chatRoom); err != nil {
			return fmt.Errorf("inserting lobby: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return &models.CreateLobbyResponse{LobbyUUID: lobby, LobbyChatRoomUUID: chatRoom}, nil
}

// JoinLobbyResult names the lobby chat room and the players (owner plus
// prior members) to send lobbyJoin notifications to.
type JoinLobbyResult struct {
	ChatRoom uuid.UUID
	Notify   []uuid.UUID
}

// JoinLobby adds the player to a lobby. An invite bypasses the password
// check and is consumed; otherwise verifyPassword decides against the
// stored hash. verifyPassword is only called for password-protected
// lobbies.
func (db *DB) JoinLobby(ctx context.Context, lobby uuid.UUID, player uuid.UUID, verifyPassword func(hash string) bool) (*JoinLobbyResult, error) {
	result := &JoinLobbyResult{}
	err := timed("insert", "lobby_members", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var owner, chatRoom uuid.UUID
		var passwordHash *string
		var maxPlayers int
		err = tx.QueryRowContext(ctx,
			`SELECT owner, chat_room, password_hash, max_players
			 FROM lobbies WHERE uuid = ?`, lobby).
			Scan(&owner, &chatRoom, &passwordHash, &maxPlayers)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading lobby: %w", err)
		}
		result.ChatRoom = chatRoom

		inLobby, err := inAnyLobbyTx(ctx, tx, player)
		if err != nil {
			return err
		}
		if inLobby {
			return ErrAlreadyInLobby
		}

		members, err := lobbyMembersTx(ctx, tx, lobby)
		if err != nil {
			return err
		}
		if 1+len(members) >= maxPlayers {
			return ErrLobbyFull
		}

		// An invite admits the player without the password and is
		// consumed on use.
		invited, err := tx.ExecContext(ctx,
			`DELETE FROM invites WHERE lobby = ? AND to_account = ?`, lobby, player)
		if err != nil {
			return fmt.Errorf("consuming invite: %w", err)
		}
		consumed, _ := invited.RowsAffected()
		if consumed == 0 && passwordHash != nil && !verifyPassword(*passwordHash) {
			return ErrWrongPassword
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lobby_members (uuid, lobby, player) VALUES (?, ?, ?)`,
			uuid.New(), lobby, player); err != nil {
			return fmt.Errorf("inserting lobby member: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_room_members (uuid, chat_room, member) VALUES (?, ?, ?)`,
			uuid.New(), chatRoom, player); err != nil {
			return fmt.Errorf("adding player to lobby chat: %w", err)
		}

		result.Notify = append([]uuid.UUID{owner}, members...)
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LeaveLobbyResult describes a leave: when the owner leaves the lobby is
// closed; Notify are the players owed a lobbyLeave or lobbyClosed event.
type LeaveLobbyResult struct {
	Closed bool
	Notify []uuid.UUID
}

// LeaveLobby removes the player. The owner leaving closes the whole
// lobby, everyone else just steps out.
func (db *DB) LeaveLobby(ctx context.Context, lobby uuid.UUID, player uuid.UUID) (*LeaveLobbyResult, error) {
	result := &LeaveLobbyResult{}
	err := timed("delete", "lobby_members", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var owner, chatRoom uuid.UUID
		err = tx.QueryRowContext(ctx,
			`SELECT owner, chat_room FROM lobbies WHERE uuid = ?`, lobby).
			Scan(&owner, &chatRoom)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading lobby: %w", err)
		}

		members, err := lobbyMembersTx(ctx, tx, lobby)
		if err != nil {
			return err
		}

		if player == owner {
			result.Closed = true
			result.Notify = members
			if err := closeLobbyTx(ctx, tx, lobby, chatRoom); err != nil {
				return err
			}
			return tx.Commit()
		}

		found := false
		for _, member := range members {
			if member == player {
				found = true
				continue
			}
			result.Notify = append(result.Notify, member)
		}
		if !found {
			return ErrNotLobbyMember
		}
		result.Notify = append(result.Notify, owner)

		if err := removeLobbyMemberTx(ctx, tx, lobby, chatRoom, player); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// KickPlayer removes a member on the owner's request. Notify lists the
// remaining members (owner excluded, target excluded).
func (db *DB) KickPlayer(ctx context.Context, lobby uuid.UUID, caller uuid.UUID, target uuid.UUID) (notify []uuid.UUID, err error) {
	err = timed("delete", "lobby_members", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var owner, chatRoom uuid.UUID
		err = tx.QueryRowContext(ctx,
			`SELECT owner, chat_room FROM lobbies WHERE uuid = ?`, lobby).
			Scan(&owner, &chatRoom)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading lobby: %w", err)
		}
		if caller != owner {
			return ErrNotLobbyOwner
		}

		members, err := lobbyMembersTx(ctx, tx, lobby)
		if err != nil {
			return err
		}
		found := false
		for _, member := range members {
			if member == target {
				found = true
				continue
			}
			notify = append(notify, member)
		}
		if !found {
			return ErrNotLobbyMember
		}

		if err := removeLobbyMemberTx(ctx, tx, lobby, chatRoom, target); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return notify, nil
}

// StartGameResult carries everything the handler needs to respond and to
// notify the players.
type StartGameResult struct {
	GameUUID      uuid.UUID
	GameChatUUID  uuid.UUID
	LobbyChatUUID uuid.UUID
	Players       []uuid.UUID
}

// StartGame converts a lobby into a game: a game row is created, the
// lobby chat history and membership move to the game's new chat room,
// and the lobby disappears. Owner only; needs at least MinLobbyPlayers
// players total.
func (db *DB) StartGame(ctx context.Context, lobby uuid.UUID, caller uuid.UUID) (*StartGameResult, error) {
	result := &StartGameResult{
		GameUUID:     uuid.New(),
		GameChatUUID: uuid.New(),
	}
	err := timed("insert", "games", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var owner, chatRoom uuid.UUID
		var name string
		var maxPlayers int
		err = tx.QueryRowContext(ctx,
			`SELECT owner, chat_room, name, max_players FROM lobbies WHERE uuid = ?`,
			lobby).Scan(&owner, &chatRoom, &name, &maxPlayers)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading lobby: %w", err)
		}
		if caller != owner {
			return ErrNotLobbyOwner
		}
		result.LobbyChatUUID = chatRoom

		members, err := lobbyMembersTx(ctx, tx, lobby)
		if err != nil {
			return err
		}
		result.Players = append([]uuid.UUID{owner}, members...)
		if len(result.Players) < models.MinLobbyPlayers {
			return ErrLobbyTooSmall
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_rooms (uuid) VALUES (?)`, result.GameChatUUID); err != nil {
			return fmt.Errorf("creating game chat room: %w", err)
		}
		// The lobby conversation follows the players into the game.
		if _, err := tx.ExecContext(ctx,
			`UPDATE chat_room_members SET chat_room = ? WHERE chat_room = ?`,
			result.GameChatUUID, chatRoom); err != nil {
			return fmt.Errorf("moving chat members: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chat_room_messages SET chat_room = ? WHERE chat_room = ?`,
			result.GameChatUUID, chatRoom); err != nil {
			return fmt.Errorf("moving chat messages: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO games (uuid, name, max_players, chat_room, updated_by)
			 VALUES (?, ?, ?, ?, ?)`,
			result.GameUUID, name, maxPlayers, result.GameChatUUID, owner); err != nil {
			return fmt.Errorf("inserting game: %w", err)
		}
		for _, player := range result.Players {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO game_members (uuid, game, player) VALUES (?, ?, ?)`,
				uuid.New(), result.GameUUID, player); err != nil {
				return fmt.Errorf("inserting game member: %w", err)
			}
		}

		for _, stmt := range []string{
			`DELETE FROM invites WHERE lobby = ?`,
			`DELETE FROM lobby_members WHERE lobby = ?`,
			`DELETE FROM lobbies WHERE uuid = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, lobby); err != nil {
				return fmt.Errorf("removing lobby: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chat_rooms WHERE uuid = ?`, chatRoom); err != nil {
			return fmt.Errorf("removing lobby chat room: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lobbyMembersTx lists the non-owner members of a lobby.
func lobbyMembersTx(ctx context.Context, tx *sql.Tx, lobby uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT player FROM lobby_members WHERE lobby = ? ORDER BY created_at`, lobby)
	if err != nil {
		return nil, fmt.Errorf("listing lobby members: %w", err)
	}
	defer rows.Close()
	var members []uuid.UUID
	for rows.Next() {
		var member uuid.UUID
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scanning lobby member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

// removeLobbyMemberTx drops one member from the lobby and its chat.
func removeLobbyMemberTx(ctx context.Context, tx *sql.Tx, lobby, chatRoom, player uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM lobby_members WHERE lobby = ? AND player = ?`, lobby, player); err != nil {
		return fmt.Errorf("removing lobby member: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chat_room_members WHERE chat_room = ? AND member = ?`,
		chatRoom, player); err != nil {
		return fmt.Errorf("removing chat member: %w", err)
	}
	return nil
}

// closeLobbyTx deletes a lobby with its members, invites and chat room.
func closeLobbyTx(ctx context.Context, tx *sql.Tx, lobby, chatRoom uuid.UUID) error {
	for _, stmt := range []string{
		`DELETE FROM invites WHERE lobby = ?`,
		`DELETE FROM lobby_members WHERE lobby = ?`,
		`DELETE FROM lobbies WHERE uuid = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, lobby); err != nil {
			return fmt.Errorf("closing lobby: %w", err)
		}
	}
	return deleteChatRoomTx(ctx, tx, chatRoom)
}
