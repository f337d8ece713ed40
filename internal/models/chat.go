// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxChatMessageLength bounds stored chat messages.
const MaxChatMessageLength = 2048

// ChatRoom is a message channel attached to a friendship, lobby or game.
type ChatRoom struct {
	UUID            uuid.UUID  `json:"uuid"`
	LastMessageUUID *uuid.UUID `json:"last_message_uuid,omitempty"`
}

// ChatRoomMember links an account to a chat room.
type ChatRoomMember struct {
	UUID      uuid.UUID `json:"uuid"`
	ChatRoom  uuid.UUID `json:"chat_room"`
	Member    uuid.UUID `json:"member"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one stored chat room message.
type ChatMessage struct {
	UUID      uuid.UUID `json:"uuid"`
	Sender    uuid.UUID `json:"sender"`
	ChatRoom  uuid.UUID `json:"-"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRoomResponse is the detail view of a chat room: members and messages.
type ChatRoomResponse struct {
	UUID     uuid.UUID         `json:"uuid"`
	Members  []AccountResponse `json:"members"`
	Messages []ChatMessage     `json:"messages"`
}

// ChatRoomSummary is the list view of a chat room.
type ChatRoomSummary struct {
	UUID            uuid.UUID  `json:"uuid"`
	LastMessageUUID *uuid.UUID `json:"last_message_uuid,omitempty"`
}

// SendChatMessageRequest is the payload for POST /chats/{uuid}.
type SendChatMessageRequest struct {
	Message string `json:"message" validate:"required,max=2048"`
}
