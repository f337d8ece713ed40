// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package ws

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/models"
)

// EventType tags an outbound event envelope. Tags are camelCase on the wire.
type EventType string

// Wire event tags. EventTypeFinishedTurn is the only tag a client may send;
// everything else originates from the server.
const (
	EventTypeInvalidMessage        EventType = "invalidMessage"
	EventTypeFinishedTurn          EventType = "finishedTurn"
	EventTypeGameStarted           EventType = "gameStarted"
	EventTypeUpdateGameData        EventType = "updateGameData"
	EventTypeClientDisconnected    EventType = "clientDisconnected"
	EventTypeClientReconnected     EventType = "clientReconnected"
	EventTypeIncomingChatMessage   EventType = "incomingChatMessage"
	EventTypeIncomingInvite        EventType = "incomingInvite"
	EventTypeIncomingFriendRequest EventType = "incomingFriendRequest"
	EventTypeFriendshipChanged     EventType = "friendshipChanged"
	EventTypeLobbyJoin             EventType = "lobbyJoin"
	EventTypeLobbyLeave            EventType = "lobbyLeave"
	EventTypeLobbyKick             EventType = "lobbyKick"
	EventTypeLobbyClosed           EventType = "lobbyClosed"
	EventTypeAccountUpdated        EventType = "accountUpdated"

	// eventTypeQuit asks a sender to close its connection and exit.
	// Internal only, never serialized to the wire.
	eventTypeQuit EventType = "\x00quit"
)

// Event is one outbound notification, serialized as a tagged envelope
// {"type": ..., "content": ...}.
type Event struct {
	Type    EventType `json:"type"`
	Content any       `json:"content,omitempty"`
}

// quitEvent is the terminate sentinel handed to senders.
var quitEvent = Event{Type: eventTypeQuit}

func (e Event) isQuit() bool { return e.Type == eventTypeQuit }

// InvalidMessageEvent is the in-band response to a malformed or disallowed
// inbound message. The connection stays open.
func InvalidMessageEvent() Event {
	return Event{Type: EventTypeInvalidMessage}
}

// GameStartedContent notifies lobby members that their lobby became a game.
// The old chat room uuids are included to ease client-side remapping.
type GameStartedContent struct {
	GameUUID      uuid.UUID `json:"gameUuid"`
	GameChatUUID  uuid.UUID `json:"gameChatUuid"`
	LobbyUUID     uuid.UUID `json:"lobbyUuid"`
	LobbyChatUUID uuid.UUID `json:"lobbyChatUuid"`
}

// UpdateGameDataContent carries a new game state to all players of a game.
// GameDataID increments on every accepted upload so clients can detect
// missed updates via the REST read endpoint.
type UpdateGameDataContent struct {
	GameUUID   uuid.UUID       `json:"gameUuid"`
	GameData   json.RawMessage `json:"gameData"`
	GameDataID int64           `json:"gameDataId"`
}

// ClientStateContent notifies game members that a co-player's connection
// state changed (used by clientDisconnected and clientReconnected).
type ClientStateContent struct {
	GameUUID uuid.UUID `json:"gameUuid"`
	UUID     uuid.UUID `json:"uuid"`
}

// IncomingChatMessageContent delivers a new chat room message.
type IncomingChatMessageContent struct {
	ChatUUID uuid.UUID          `json:"chatUuid"`
	Message  models.ChatMessage `json:"message"`
}

// IncomingInviteContent delivers a lobby invite.
type IncomingInviteContent struct {
	InviteUUID uuid.UUID              `json:"inviteUuid"`
	From       models.AccountResponse `json:"from"`
	LobbyUUID  uuid.UUID              `json:"lobbyUuid"`
	LobbyName  string                 `json:"lobbyName"`
}

// IncomingFriendRequestContent delivers a new friend request.
type IncomingFriendRequestContent struct {
	From models.AccountResponse `json:"from"`
}

// FriendshipStatus enumerates friendshipChanged outcomes.
type FriendshipStatus string

const (
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
	FriendshipDeleted  FriendshipStatus = "deleted"
)

// FriendshipChangedContent notifies the other party of a friendship change.
type FriendshipChangedContent struct {
	From   models.AccountResponse `json:"from"`
	Status FriendshipStatus       `json:"status"`
}

// LobbyMemberContent notifies lobby members that a player joined, left or
// was kicked (used by lobbyJoin, lobbyLeave and lobbyKick).
type LobbyMemberContent struct {
	LobbyUUID uuid.UUID              `json:"lobbyUuid"`
	Player    models.AccountResponse `json:"player"`
}

// LobbyClosedContent notifies members that a lobby was closed.
type LobbyClosedContent struct {
	LobbyUUID uuid.UUID `json:"lobbyUuid"`
}

// AccountUpdatedContent notifies friends that an account changed its
// username or display name.
type AccountUpdatedContent struct {
	Account models.AccountResponse `json:"account"`
}

// FinishedTurn is the only application message a client may send: the
// uploaded state of a game after the client finished its turn.
type FinishedTurn struct {
	GameUUID uuid.UUID       `json:"gameUuid"`
	GameData json.RawMessage `json:"gameData"`
}

// clientEnvelope mirrors Event for inbound parsing, with the content left
// raw until the tag is known.
type clientEnvelope struct {
	Type    EventType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

// ParseClientMessage parses and validates one inbound text frame.
//
// The tag set is closed: unknown tags and tags that only the server may
// produce are rejected, so a confused or malicious client gets an
// invalidMessage response instead of silently corrupting state.
func ParseClientMessage(data []byte) (*FinishedTurn, error) {
	var envelope clientEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch envelope.Type {
	case EventTypeFinishedTurn:
		var turn FinishedTurn
		if err := json.Unmarshal(envelope.Content, &turn); err != nil {
			return nil, fmt.Errorf("malformed finishedTurn content: %w", err)
		}
		if turn.GameUUID == uuid.Nil {
			return nil, fmt.Errorf("finishedTurn without game uuid")
		}
		if len(turn.GameData) == 0 {
			return nil, fmt.Errorf("finishedTurn without game data")
		}
		return &turn, nil
	case EventTypeInvalidMessage, EventTypeGameStarted, EventTypeUpdateGameData,
		EventTypeClientDisconnected, EventTypeClientReconnected,
		EventTypeIncomingChatMessage, EventTypeIncomingInvite,
		EventTypeIncomingFriendRequest, EventTypeFriendshipChanged,
		EventTypeLobbyJoin, EventTypeLobbyLeave, EventTypeLobbyKick,
		EventTypeLobbyClosed, EventTypeAccountUpdated:
		return nil, fmt.Errorf("server-only message type %q", envelope.Type)
	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}
}
