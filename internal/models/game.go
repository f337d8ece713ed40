// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Game is a started match. GameData is the opaque client-defined state blob;
// DataID is a counter incremented on every upload so clients can cheaply
// poll for updates on long-running games.
type Game struct {
	UUID       uuid.UUID       `json:"uuid"`
	Name       string          `json:"name"`
	DataID     int64           `json:"data_id"`
	GameData   json.RawMessage `json:"game_data,omitempty"`
	MaxPlayers int             `json:"max_players"`
	ChatRoom   uuid.UUID       `json:"chat_room_uuid"`
	UpdatedBy  uuid.UUID       `json:"updated_by"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// GameMember links a player to a game.
type GameMember struct {
	UUID   uuid.UUID `json:"uuid"`
	Game   uuid.UUID `json:"game"`
	Player uuid.UUID `json:"player"`
}

// GameSummary is the list view of a game: identity and version, no state blob.
type GameSummary struct {
	UUID         uuid.UUID `json:"uuid"`
	Name         string    `json:"name"`
	DataID       int64     `json:"data_id"`
	MaxPlayers   int       `json:"max_players"`
	ChatRoomUUID uuid.UUID `json:"chat_room_uuid"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GameResponse is the detail view of a game including its state blob.
type GameResponse struct {
	UUID         uuid.UUID         `json:"uuid"`
	Name         string            `json:"name"`
	DataID       int64             `json:"data_id"`
	GameData     json.RawMessage   `json:"game_data"`
	MaxPlayers   int               `json:"max_players"`
	ChatRoomUUID uuid.UUID         `json:"chat_room_uuid"`
	UpdatedBy    AccountResponse   `json:"updated_by"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Players      []AccountResponse `json:"players"`
}

// UploadGameStateRequest is the payload for PUT /games/{uuid}.
type UploadGameStateRequest struct {
	GameData json.RawMessage `json:"game_data"`
}

// UploadGameStateResponse returns the new data version.
type UploadGameStateResponse struct {
	DataID int64 `json:"game_data_id"`
}
