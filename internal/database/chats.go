// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/models"
)

// GetChatRooms lists the chat rooms the account is a member of, each with
// its latest message uuid for client-side unread tracking.
func (db *DB) GetChatRooms(ctx context.Context, account uuid.UUID) ([]models.ChatRoomSummary, error) {
	summaries := []models.ChatRoomSummary{}
	err := timed("select", "chat_rooms", func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT r.uuid,
			       (SELECT m.uuid FROM chat_room_messages m
			        WHERE m.chat_room = r.uuid
			        ORDER BY m.created_at DESC LIMIT 1)
			FROM chat_rooms r
			JOIN chat_room_members cm ON cm.chat_room = r.uuid
			WHERE cm.member = ?
			ORDER BY r.created_at`, account)
		if err != nil {
			return fmt.Errorf("listing chat rooms: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var s models.ChatRoomSummary
			if err := rows.Scan(&s.UUID, &s.LastMessageUUID); err != nil {
				return fmt.Errorf("scanning chat room: %w", err)
			}
			summaries = append(summaries, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetChatRoom loads a room with members and full message history. The
// caller must be a member.
func (db *DB) GetChatRoom(ctx context.Context, room uuid.UUID, account uuid.UUID) (*models.ChatRoomResponse, error) {
	result := &models.ChatRoomResponse{
		UUID:     room,
		Members:  []models.AccountResponse{},
		Messages: []models.ChatMessage{},
	}
	err := timed("select", "chat_rooms", func() error {
		var n int
		err := db.conn.QueryRowContext(ctx,
			`SELECT count(*) FROM chat_rooms WHERE uuid = ?`, room).Scan(&n)
		if err != nil {
			return fmt.Errorf("checking chat room: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}

		memberRows, err := db.conn.QueryContext(ctx, `
			SELECT a.uuid, a.username, a.display_name
			FROM chat_room_members cm
			JOIN accounts a ON a.uuid = cm.member
			WHERE cm.chat_room = ?
			ORDER BY cm.created_at`, room)
		if err != nil {
			return fmt.Errorf("listing chat members: %w", err)
		}
		defer memberRows.Close()

		isMember := false
		for memberRows.Next() {
			var m models.AccountResponse
			if err := memberRows.Scan(&m.UUID, &m.Username, &m.DisplayName); err != nil {
				return fmt.Errorf("scanning chat member: %w", err)
			}
			if m.UUID == account {
				isMember = true
			}
			result.Members = append(result.Members, m)
		}
		if err := memberRows.Err(); err != nil {
			return err
		}
		if !isMember {
			return ErrNotChatMember
		}

		messageRows, err := db.conn.QueryContext(ctx, `
			SELECT uuid, sender, message, created_at
			FROM chat_room_messages
			WHERE chat_room = ?
			ORDER BY created_at`, room)
		if err != nil {
			return fmt.Errorf("listing chat messages: %w", err)
		}
		defer messageRows.Close()

		for messageRows.Next() {
			var m models.ChatMessage
			m.ChatRoom = room
			if err := messageRows.Scan(&m.UUID, &m.Sender, &m.Message, &m.CreatedAt); err != nil {
				return fmt.Errorf("scanning chat message: %w", err)
			}
			result.Messages = append(result.Messages, m)
		}
		return messageRows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateChatMessage stores a message and returns it together with the
// room members to notify. The sender must be a member.
func (db *DB) CreateChatMessage(ctx context.Context, room uuid.UUID, sender uuid.UUID, text string) (*models.ChatMessage, []uuid.UUID, error) {
	message := &models.ChatMessage{
		UUID:      uuid.New(),
		Sender:    sender,
		ChatRoom:  room,
		Message:   text,
		CreatedAt: time.Now().UTC(),
	}
	var members []uuid.UUID
	err := timed("insert", "chat_room_messages", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx,
			`SELECT member FROM chat_room_members WHERE chat_room = ?`, room)
		if err != nil {
			return fmt.Errorf("listing chat members: %w", err)
		}
		isMember := false
		for rows.Next() {
			var member uuid.UUID
			if err := rows.Scan(&member); err != nil {
				rows.Close()
				return fmt.Errorf("scanning chat member: %w", err)
			}
			if member == sender {
				isMember = true
			}
			members = append(members, member)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(members) == 0 {
			return ErrNotFound
		}
		if !isMember {
			return ErrNotChatMember
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_room_messages (uuid, chat_room, sender, message, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			message.UUID, room, sender, text, message.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting chat message: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, nil, err
	}
	return message, members, nil
}

// deleteChatRoomTx removes a room with its members and messages inside an
// existing transaction.
func deleteChatRoomTx(ctx context.Context, tx *sql.Tx, room uuid.UUID) error {
	for _, stmt := range []string{
		`DELETE FROM chat_room_messages WHERE chat_room = ?`,
		`DELETE FROM chat_room_members WHERE chat_room = ?`,
		`DELETE FROM chat_rooms WHERE uuid = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, room); err != nil {
			return fmt.Errorf("deleting chat room: %w", err)
		}
	}
	return nil
}

// lookupRoomMembersTx lists the members of a room inside a transaction.
func lookupRoomMembersTx(ctx context.Context, tx *sql.Tx, room uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT member FROM chat_room_members WHERE chat_room = ?`, room)
	if err != nil {
		return nil, fmt.Errorf("listing chat members: %w", err)
	}
	defer rows.Close()
	var members []uuid.UUID
	for rows.Next() {
		var member uuid.UUID
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scanning chat member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
