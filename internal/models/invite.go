// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite lets the invitee join a lobby without knowing its password.
type Invite struct {
	UUID      uuid.UUID `json:"uuid"`
	From      uuid.UUID `json:"from"`
	To        uuid.UUID `json:"to"`
	Lobby     uuid.UUID `json:"lobby_uuid"`
	CreatedAt time.Time `json:"created_at"`
}

// InviteResponse is the public view of an invite.
type InviteResponse struct {
	UUID      uuid.UUID       `json:"uuid"`
	From      AccountResponse `json:"from"`
	LobbyUUID uuid.UUID       `json:"lobby_uuid"`
	LobbyName string          `json:"lobby_name"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateInviteRequest is the payload for POST /invites.
type CreateInviteRequest struct {
	Friend    uuid.UUID `json:"friend_uuid"`
	LobbyUUID uuid.UUID `json:"lobby_uuid"`
}
