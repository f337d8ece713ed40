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

// GetFriends lists confirmed friendships and pending requests (both
// directions) for the account, with resolved account views.
func (db *DB) GetFriends(ctx context.Context, account uuid.UUID) (*models.GetFriendsResponse, error) {
	result := &models.GetFriendsResponse{
		Friends:        []models.FriendResponse{},
		FriendRequests: []models.FriendResponse{},
	}
	err := timed("select", "friends", func() error {
		rows, err := db.conn.QueryContext(ctx, `
			SELECT f.uuid, f.is_request, f.chat_room,
			       fa.uuid, fa.username, fa.display_name,
			       ta.uuid, ta.username, ta.display_name
			FROM friends f
			JOIN accounts fa ON fa.uuid = f.from_account
			JOIN accounts ta ON ta.uuid = f.to_account
			WHERE (f.from_account = ? AND NOT f.is_request)
			   OR ((f.from_account = ? OR f.to_account = ?) AND f.is_request)
			ORDER BY f.created_at`, account, account, account)
		if err != nil {
			return fmt.Errorf("listing friends: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var fr models.FriendResponse
			var isRequest bool
			err := rows.Scan(&fr.UUID, &isRequest, &fr.ChatRoom,
				&fr.From.UUID, &fr.From.Username, &fr.From.DisplayName,
				&fr.To.UUID, &fr.To.Username, &fr.To.DisplayName)
			if err != nil {
				return fmt.Errorf("scanning friend: %w", err)
			}
			if isRequest {
				result.FriendRequests = append(result.FriendRequests, fr)
			} else {
				result.Friends = append(result.Friends, fr)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateFriendRequest records a pending request from one account to
// another. Self-requests, duplicate requests and existing friendships
// are rejected.
func (db *DB) CreateFriendRequest(ctx context.Context, from, to uuid.UUID) (*models.Friend, error) {
	if from == to {
		return nil, ErrSelfReference
	}
	friend := &models.Friend{
		UUID:      uuid.New(),
		IsRequest: true,
		From:      from,
		To:        to,
	}
	err := timed("insert", "friends", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM accounts WHERE uuid = ?`, to).Scan(&n); err != nil {
			return fmt.Errorf("checking target account: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}

		var pending, confirmed int
		err = tx.QueryRowContext(ctx, `
			SELECT
				count(*) FILTER (WHERE is_request),
				count(*) FILTER (WHERE NOT is_request)
			FROM friends
			WHERE (from_account = ? AND to_account = ?)
			   OR (from_account = ? AND to_account = ?)`,
			from, to, to, from).Scan(&pending, &confirmed)
		if err != nil {
			return fmt.Errorf("checking existing friendship: %w", err)
		}
		if confirmed > 0 {
			return ErrAlreadyFriends
		}
		if pending > 0 {
			return ErrFriendRequestPending
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO friends (uuid, is_request, from_account, to_account)
			 VALUES (?, true, ?, ?)`, friend.UUID, from, to)
		if err != nil {
			return fmt.Errorf("inserting friend request: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return friend, nil
}

// AcceptFriendRequest confirms a pending request addressed to the
// accepter. The friendship becomes two directed rows sharing a freshly
// created private chat room. Returns the requester and the chat room.
func (db *DB) AcceptFriendRequest(ctx context.Context, request uuid.UUID, accepter uuid.UUID) (requester uuid.UUID, chatRoom uuid.UUID, err error) {
	chatRoom = uuid.New()
	err = timed("update", "friends", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var from, to uuid.UUID
		err = tx.QueryRowContext(ctx,
			`SELECT from_account, to_account FROM friends
			 WHERE uuid = ? AND is_request`, request).Scan(&from, &to)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading friend request: %w", err)
		}
		if to != accepter {
			// Only the addressee may accept; everyone else sees a 404.
			return ErrNotFound
		}
		requester = from

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_rooms (uuid) VALUES (?)`, chatRoom); err != nil {
			return fmt.Errorf("creating chat room: %w", err)
		}
		for _, member := range []uuid.UUID{from, to} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chat_room_members (uuid, chat_room, member) VALUES (?, ?, ?)`,
				uuid.New(), chatRoom, member); err != nil {
				return fmt.Errorf("adding chat member: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE friends SET is_request = false, chat_room = ? WHERE uuid = ?`,
			chatRoom, request); err != nil {
			return fmt.Errorf("confirming friend request: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO friends (uuid, is_request, from_account, to_account, chat_room)
			 VALUES (?, false, ?, ?, ?)`, uuid.New(), to, from, chatRoom); err != nil {
			return fmt.Errorf("inserting reverse friendship: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return requester, chatRoom, nil
}

// DeleteFriend removes a friendship or rejects/retracts a pending
// request. The caller must be one of the two parties. Confirmed
// friendships lose both directed rows and their private chat room.
// Returns the other party and whether the row was still a request.
func (db *DB) DeleteFriend(ctx context.Context, friend uuid.UUID, caller uuid.UUID) (other uuid.UUID, wasRequest bool, err error) {
	err = timed("delete", "friends", func() error {
		tx, err := db.begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var from, to uuid.UUID
		var isRequest bool
		var chatRoom *uuid.UUID
		err = tx.QueryRowContext(ctx,
			`SELECT from_account, to_account, is_request, chat_room
			 FROM friends WHERE uuid = ?`, friend).Scan(&from, &to, &isRequest, &chatRoom)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading friendship: %w", err)
		}
		if from != caller && to != caller {
			return ErrNotFound
		}
		wasRequest = isRequest
		if from == caller {
			other = to
		} else {
			other = from
		}

		if isRequest {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM friends WHERE uuid = ?`, friend); err != nil {
				return fmt.Errorf("deleting friend request: %w", err)
			}
			return tx.Commit()
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM friends
			WHERE (from_account = ? AND to_account = ?)
			   OR (from_account = ? AND to_account = ?)`,
			from, to, to, from); err != nil {
			return fmt.Errorf("deleting friendship rows: %w", err)
		}
		if chatRoom != nil {
			if err := deleteChatRoomTx(ctx, tx, *chatRoom); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	return other, wasRequest, nil
}
