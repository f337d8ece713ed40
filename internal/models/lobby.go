// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package models

import (
	"time"

	"github.com/google/uuid"
)

// Lobby player count bounds. A game needs an opponent, and the client's
// map rendering caps out at 34 players.
const (
	MinLobbyPlayers = 2
	MaxLobbyPlayers = 34
)

// Lobby is the pre-game state: a named room players gather in before the
// owner starts the game. Starting the game deletes the lobby.
type Lobby struct {
	UUID         uuid.UUID `json:"uuid"`
	Name         string    `json:"name"`
	Owner        uuid.UUID `json:"owner"`
	PasswordHash *string   `json:"-"`
	MaxPlayers   int       `json:"max_players"`
	ChatRoom     uuid.UUID `json:"chat_room_uuid"`
	CreatedAt    time.Time `json:"created_at"`
}

// LobbyMember links a non-owner account to a lobby.
type LobbyMember struct {
	UUID   uuid.UUID `json:"uuid"`
	Lobby  uuid.UUID `json:"lobby"`
	Player uuid.UUID `json:"player"`
}

// LobbyResponse is the public view of a lobby. CurrentPlayers counts the
// owner plus all members.
type LobbyResponse struct {
	UUID           uuid.UUID       `json:"uuid"`
	Name           string          `json:"name"`
	MaxPlayers     int             `json:"max_players"`
	CurrentPlayers int             `json:"current_players"`
	HasPassword    bool            `json:"password"`
	Owner          AccountResponse `json:"owner"`
	ChatRoomUUID   uuid.UUID       `json:"chat_room_uuid"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CreateLobbyRequest is the payload for POST /lobbies.
type CreateLobbyRequest struct {
	Name       string  `json:"name" validate:"required,max=255"`
	Password   *string `json:"password,omitempty"`
	MaxPlayers int     `json:"max_players" validate:"min=2,max=34"`
}

// CreateLobbyResponse returns the created lobby and its chat room.
type CreateLobbyResponse struct {
	LobbyUUID         uuid.UUID `json:"lobby_uuid"`
	LobbyChatRoomUUID uuid.UUID `json:"lobby_chat_room_uuid"`
}

// JoinLobbyRequest is the payload for POST /lobbies/{uuid}/join.
// Password is required when the lobby is secured and the caller holds no
// invite.
type JoinLobbyRequest struct {
	Password *string `json:"password,omitempty"`
}

// StartGameResponse returns the game created from a lobby.
type StartGameResponse struct {
	GameUUID     uuid.UUID `json:"game_uuid"`
	GameChatUUID uuid.UUID `json:"game_chat_uuid"`
}
