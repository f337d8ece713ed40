// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package ws

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func TestParseClientMessage(t *testing.T) {
	gameUUID := uuid.New()

	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{
			name:    "valid finished turn",
			payload: `{"type":"finishedTurn","content":{"gameUuid":"` + gameUUID.String() + `","gameData":{"turn":42}}}`,
		},
		{
			name:    "malformed json",
			payload: `{"type":"finishedTurn"`,
			wantErr: "malformed envelope",
		},
		{
			name:    "unknown type",
			payload: `{"type":"launchMissiles","content":{}}`,
			wantErr: "unknown message type",
		},
		{
			name:    "server-only type",
			payload: `{"type":"gameStarted","content":{}}`,
			wantErr: "server-only message type",
		},
		{
			name:    "finished turn without content",
			payload: `{"type":"finishedTurn"}`,
			wantErr: "malformed finishedTurn content",
		},
		{
			name:    "finished turn without game uuid",
			payload: `{"type":"finishedTurn","content":{"gameData":{"turn":1}}}`,
			wantErr: "without game uuid",
		},
		{
			name:    "finished turn without game data",
			payload: `{"type":"finishedTurn","content":{"gameUuid":"` + gameUUID.String() + `"}}`,
			wantErr: "without game data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn, err := ParseClientMessage([]byte(tt.payload))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if turn.GameUUID != gameUUID {
				t.Errorf("game uuid = %s, want %s", turn.GameUUID, gameUUID)
			}
			if len(turn.GameData) == 0 {
				t.Error("game data is empty")
			}
		})
	}
}

func TestEventEnvelopeWireFormat(t *testing.T) {
	lobby := uuid.New()
	ev := Event{
		Type:    EventTypeLobbyClosed,
		Content: LobbyClosedContent{LobbyUUID: lobby},
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type    string `json:"type"`
		Content struct {
			LobbyUUID string `json:"lobbyUuid"`
		} `json:"content"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "lobbyClosed" {
		t.Errorf("type = %q, want %q", decoded.Type, "lobbyClosed")
	}
	if decoded.Content.LobbyUUID != lobby.String() {
		t.Errorf("lobbyUuid = %q, want %q", decoded.Content.LobbyUUID, lobby)
	}
}

func TestQuitSentinelNeverOnTheWire(t *testing.T) {
	if !quitEvent.isQuit() {
		t.Fatal("quit sentinel does not identify as quit")
	}
	if InvalidMessageEvent().isQuit() {
		t.Fatal("invalidMessage must not identify as quit")
	}
}
