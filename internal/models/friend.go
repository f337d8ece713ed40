// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package models

import "github.com/google/uuid"

// Friend is one direction of a friendship. A confirmed friendship is stored
// as two rows, one per direction; a pending request is a single row with
// IsRequest set.
type Friend struct {
	UUID      uuid.UUID  `json:"uuid"`
	IsRequest bool       `json:"is_request"`
	From      uuid.UUID  `json:"from"`
	To        uuid.UUID  `json:"to"`
	ChatRoom  *uuid.UUID `json:"chat_room_uuid,omitempty"`
}

// FriendResponse is the public view of a friendship or friend request.
type FriendResponse struct {
	UUID     uuid.UUID       `json:"uuid"`
	From     AccountResponse `json:"from"`
	To       AccountResponse `json:"to"`
	ChatRoom *uuid.UUID      `json:"chat_room_uuid,omitempty"`
}

// GetFriendsResponse splits confirmed friendships from pending requests.
type GetFriendsResponse struct {
	Friends        []FriendResponse `json:"friends"`
	FriendRequests []FriendResponse `json:"friend_requests"`
}

// CreateFriendRequest is the payload for POST /friends.
type CreateFriendRequest struct {
	UUID uuid.UUID `json:"uuid"`
}
