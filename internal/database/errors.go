// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package database

import "errors"

// Sentinel errors mapped to API error codes by the api package.
var (
	ErrNotFound             = errors.New("not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrFriendRequestPending = errors.New("friend request already pending")
	ErrNotFriends           = errors.New("accounts are not friends")
	ErrAlreadyInLobby       = errors.New("already in a lobby")
	ErrLobbyFull            = errors.New("lobby is full")
	ErrWrongPassword        = errors.New("wrong password")
	ErrNotLobbyOwner        = errors.New("not the lobby owner")
	ErrNotLobbyMember       = errors.New("not a lobby member")
	ErrNotChatMember        = errors.New("not a chat room member")
	ErrNotGameMember        = errors.New("not a game member")
	ErrLobbyTooSmall        = errors.New("not enough players to start")
	ErrInviteExists         = errors.New("invite already exists")
	ErrSelfReference        = errors.New("operation cannot target yourself")
)
