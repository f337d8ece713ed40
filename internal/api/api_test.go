// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabula-srv/tabula/internal/auth"
	"github.com/tabula-srv/tabula/internal/config"
	"github.com/tabula-srv/tabula/internal/database"
	"github.com/tabula-srv/tabula/internal/models"
	"github.com/tabula-srv/tabula/internal/ws"
)

const testWait = 3 * time.Second

type testServer struct {
	t      *testing.T
	server *httptest.Server
	db     *database.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Path: "", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			CORSOrigins: []string{"*"},
		},
		Websocket: config.WebsocketConfig{
			HeartbeatInterval: 50 * time.Millisecond,
			HeartbeatTimeout:  time.Second,
			CommandQueueSize:  64,
			SendQueueSize:     64,
			MaxMessageSize:    1 << 20,
		},
		Security: config.SecurityConfig{
			SessionStore:    "memory",
			SessionTimeout:  time.Hour,
			BcryptCost:      bcrypt.MinCost,
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
			LoginRateLimit:  1000,
		},
	}

	sessions := auth.NewMemoryStore(cfg.Security.SessionTimeout)
	t.Cleanup(func() { _ = sessions.Close() })

	registry := ws.NewRegistry(cfg.Websocket, db)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = registry.Serve(ctx) }()
	t.Cleanup(cancel)

	handler := NewHandler(db, registry, sessions, cfg, "test")
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)

	return &testServer{t: t, server: server, db: db}
}

// request performs a JSON request and decodes the response into out when
// out is non-nil.
func (s *testServer) request(method, path, token string, body any, out any) *http.Response {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		s.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp
}

// signup registers an account and logs it in, returning the session
// token and account uuid.
func (s *testServer) signup(username string) (token string, account uuid.UUID) {
	s.t.Helper()
	resp := s.request(http.MethodPost, "/api/v2/accounts/register", "",
		models.RegisterAccountRequest{
			Username:    username,
			DisplayName: username + " display",
			Password:    "hunter2hunter2",
		}, nil)
	if resp.StatusCode != http.StatusCreated {
		s.t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}

	var login loginResponse
	resp = s.request(http.MethodPost, "/api/v2/auth/login", "",
		models.LoginRequest{Username: username, Password: "hunter2hunter2"}, &login)
	if resp.StatusCode != http.StatusOK {
		s.t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	return login.Token, login.Account.UUID
}

// dialWS opens an authenticated websocket connection.
func (s *testServer) dialWS(token string) *websocket.Conn {
	s.t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v2/ws"
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		s.t.Fatalf("websocket dial: %v (status %d)", err, status)
	}
	s.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent reads the next event envelope off a websocket connection.
func readEvent(t *testing.T, conn *websocket.Conn) ws.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(testWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket frame: %v", err)
	}
	var ev ws.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	token, _ := s.signup("alice")

	// Duplicate username.
	resp := s.request(http.MethodPost, "/api/v2/accounts/register", "",
		models.RegisterAccountRequest{Username: "alice", DisplayName: "x", Password: "hunter2hunter2"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register: status %d, want 409", resp.StatusCode)
	}

	// Wrong password.
	resp = s.request(http.MethodPost, "/api/v2/auth/login", "",
		models.LoginRequest{Username: "alice", Password: "wrong-password"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password login: status %d, want 401", resp.StatusCode)
	}

	var me models.Account
	resp = s.request(http.MethodGet, "/api/v2/accounts/me", token, nil, &me)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	if me.Username != "alice" {
		t.Errorf("username = %q, want alice", me.Username)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup("alice")
	bobToken, bobUUID := s.signup("bob")

	// A shared chat room for the message-length case.
	s.request(http.MethodPost, "/api/v2/friends/", token,
		models.CreateFriendRequest{UUID: bobUUID}, nil)
	var bobFriends models.GetFriendsResponse
	s.request(http.MethodGet, "/api/v2/friends/", bobToken, nil, &bobFriends)
	s.request(http.MethodPut, "/api/v2/friends/"+bobFriends.FriendRequests[0].UUID.String(),
		bobToken, nil, nil)
	var friends models.GetFriendsResponse
	s.request(http.MethodGet, "/api/v2/friends/", token, nil, &friends)
	chatPath := "/api/v2/chats/" + friends.Friends[0].ChatRoom.String()

	longName := strings.Repeat("x", 256)
	longMessage := strings.Repeat("m", 2049)
	shortUsername := "ab"
	emptyDisplay := ""

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
	}{
		{"register short username", http.MethodPost, "/api/v2/accounts/register", "",
			models.RegisterAccountRequest{Username: "ab", DisplayName: "x", Password: "hunter2hunter2"}},
		{"register long display name", http.MethodPost, "/api/v2/accounts/register", "",
			models.RegisterAccountRequest{Username: "carol", DisplayName: strings.Repeat("d", 65), Password: "hunter2hunter2"}},
		{"update short username", http.MethodPut, "/api/v2/accounts/me", token,
			models.UpdateAccountRequest{Username: &shortUsername}},
		{"update empty display name", http.MethodPut, "/api/v2/accounts/me", token,
			models.UpdateAccountRequest{DisplayName: &emptyDisplay}},
		{"login missing password", http.MethodPost, "/api/v2/auth/login", "",
			models.LoginRequest{Username: "alice"}},
		{"lobby empty name", http.MethodPost, "/api/v2/lobbies/", token,
			models.CreateLobbyRequest{Name: "", MaxPlayers: 4}},
		{"lobby long name", http.MethodPost, "/api/v2/lobbies/", token,
			models.CreateLobbyRequest{Name: longName, MaxPlayers: 4}},
		{"lobby too many players", http.MethodPost, "/api/v2/lobbies/", token,
			models.CreateLobbyRequest{Name: "room", MaxPlayers: 35}},
		{"chat message too long", http.MethodPost, chatPath, bobToken,
			models.SendChatMessageRequest{Message: longMessage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			resp := s.request(tt.method, tt.path, tt.token, tt.body, &body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if body.Error.Code != "validation_error" {
				t.Errorf("error code = %q, want validation_error", body.Error.Code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, s.server.URL+"/api/v2/auth/login", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Origin", "https://game.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := s.server.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != http.MethodPost {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST", got)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	resp := s.request(http.MethodGet, "/api/v2/friends/", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t)

	var health models.HealthStatus
	resp := s.request(http.MethodGet, "/api/v1/health", "", nil, &health)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d", resp.StatusCode)
	}
	if health.Status != "ok" || !health.DatabaseConnected {
		t.Errorf("health = %+v, want ok with database connected", health)
	}

	var version models.VersionResponse
	s.request(http.MethodGet, "/api/version", "", nil, &version)
	if version.Version != "test" {
		t.Errorf("version = %q, want test", version.Version)
	}
}

func TestFriendFlow(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signup("alice")
	bobToken, bobUUID := s.signup("bob")

	resp := s.request(http.MethodPost, "/api/v2/friends/", aliceToken,
		models.CreateFriendRequest{UUID: bobUUID}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("friend request: status %d", resp.StatusCode)
	}

	var bobFriends models.GetFriendsResponse
	s.request(http.MethodGet, "/api/v2/friends/", bobToken, nil, &bobFriends)
	if len(bobFriends.FriendRequests) != 1 {
		t.Fatalf("bob requests = %d, want 1", len(bobFriends.FriendRequests))
	}
	request := bobFriends.FriendRequests[0].UUID

	resp = s.request(http.MethodPut, "/api/v2/friends/"+request.String(), bobToken, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept: status %d", resp.StatusCode)
	}

	var aliceFriends models.GetFriendsResponse
	s.request(http.MethodGet, "/api/v2/friends/", aliceToken, nil, &aliceFriends)
	if len(aliceFriends.Friends) != 1 || aliceFriends.Friends[0].To.Username != "bob" {
		t.Errorf("alice friends = %+v, want bob", aliceFriends.Friends)
	}
	if aliceFriends.Friends[0].ChatRoom == nil {
		t.Error("confirmed friendship has no chat room")
	}
}

func TestLobbyAndGameFlow(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := s.signup("owner")
	joinerToken, _ := s.signup("joiner")

	var created models.CreateLobbyResponse
	resp := s.request(http.MethodPost, "/api/v2/lobbies/", ownerToken,
		models.CreateLobbyRequest{Name: "war room", MaxPlayers: 4}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create lobby: status %d", resp.StatusCode)
	}

	// Bad player counts are rejected up front.
	resp = s.request(http.MethodPost, "/api/v2/lobbies/", joinerToken,
		models.CreateLobbyRequest{Name: "bad", MaxPlayers: 1}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("max players 1: status %d, want 400", resp.StatusCode)
	}

	lobbyPath := "/api/v2/lobbies/" + created.LobbyUUID.String()
	resp = s.request(http.MethodPost, lobbyPath+"/join", joinerToken,
		models.JoinLobbyRequest{}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d", resp.StatusCode)
	}

	var started models.StartGameResponse
	resp = s.request(http.MethodPost, lobbyPath+"/start", ownerToken, nil, &started)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: status %d", resp.StatusCode)
	}

	gamePath := "/api/v2/games/" + started.GameUUID.String()
	var upload models.UploadGameStateResponse
	resp = s.request(http.MethodPut, gamePath, ownerToken,
		models.UploadGameStateRequest{GameData: json.RawMessage(`{"turn":1}`)}, &upload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: status %d", resp.StatusCode)
	}
	if upload.DataID != 1 {
		t.Errorf("data id = %d, want 1", upload.DataID)
	}

	var game models.GameResponse
	s.request(http.MethodGet, gamePath, joinerToken, nil, &game)
	if game.DataID != 1 || string(game.GameData) != `{"turn":1}` {
		t.Errorf("game = %+v, want uploaded state at version 1", game)
	}
}

func TestWebsocketChatNotification(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signup("alice")
	bobToken, bobUUID := s.signup("bob")

	// Make them friends so a shared chat room exists.
	s.request(http.MethodPost, "/api/v2/friends/", aliceToken,
		models.CreateFriendRequest{UUID: bobUUID}, nil)
	var bobFriends models.GetFriendsResponse
	s.request(http.MethodGet, "/api/v2/friends/", bobToken, nil, &bobFriends)
	s.request(http.MethodPut, "/api/v2/friends/"+bobFriends.FriendRequests[0].UUID.String(),
		bobToken, nil, nil)

	var aliceFriends models.GetFriendsResponse
	s.request(http.MethodGet, "/api/v2/friends/", aliceToken, nil, &aliceFriends)
	chatRoom := aliceFriends.Friends[0].ChatRoom

	conn := s.dialWS(aliceToken)

	resp := s.request(http.MethodPost, "/api/v2/chats/"+chatRoom.String(), bobToken,
		models.SendChatMessageRequest{Message: "hello alice"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send message: status %d", resp.StatusCode)
	}

	ev := readEvent(t, conn)
	if ev.Type != ws.EventTypeIncomingChatMessage {
		t.Fatalf("event type = %q, want incomingChatMessage", ev.Type)
	}
	content, _ := json.Marshal(ev.Content)
	var incoming ws.IncomingChatMessageContent
	if err := json.Unmarshal(content, &incoming); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if incoming.Message.Message != "hello alice" {
		t.Errorf("message = %q, want %q", incoming.Message.Message, "hello alice")
	}
}

func TestWebsocketDisconnectClosesOwnedLobby(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := s.signup("owner")
	memberToken, _ := s.signup("member")

	var created models.CreateLobbyResponse
	s.request(http.MethodPost, "/api/v2/lobbies/", ownerToken,
		models.CreateLobbyRequest{Name: "doomed", MaxPlayers: 4}, &created)
	s.request(http.MethodPost, "/api/v2/lobbies/"+created.LobbyUUID.String()+"/join",
		memberToken, models.JoinLobbyRequest{}, nil)

	memberConn := s.dialWS(memberToken)
	ownerConn := s.dialWS(ownerToken)

	// The owner's connection drops; the cleanup worker closes the lobby
	// and tells the member.
	_ = ownerConn.Close()

	ev := readEvent(t, memberConn)
	if ev.Type != ws.EventTypeLobbyClosed {
		t.Fatalf("event type = %q, want lobbyClosed", ev.Type)
	}
	content, _ := json.Marshal(ev.Content)
	var closed ws.LobbyClosedContent
	if err := json.Unmarshal(content, &closed); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if closed.LobbyUUID != created.LobbyUUID {
		t.Errorf("lobby = %s, want %s", closed.LobbyUUID, created.LobbyUUID)
	}

	// The lobby is really gone.
	resp := s.request(http.MethodGet, "/api/v2/lobbies/"+created.LobbyUUID.String(),
		memberToken, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("lobby after cleanup: status %d, want 404", resp.StatusCode)
	}
}

func TestWebsocketFinishedTurn(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := s.signup("owner")
	memberToken, _ := s.signup("member")

	var created models.CreateLobbyResponse
	s.request(http.MethodPost, "/api/v2/lobbies/", ownerToken,
		models.CreateLobbyRequest{Name: "match", MaxPlayers: 4}, &created)
	s.request(http.MethodPost, "/api/v2/lobbies/"+created.LobbyUUID.String()+"/join",
		memberToken, models.JoinLobbyRequest{}, nil)
	var started models.StartGameResponse
	s.request(http.MethodPost, "/api/v2/lobbies/"+created.LobbyUUID.String()+"/start",
		ownerToken, nil, &started)

	memberConn := s.dialWS(memberToken)
	ownerConn := s.dialWS(ownerToken)

	// The member may see the owner's reconnect notice first; filter for
	// the update.
	turn := `{"type":"finishedTurn","content":{"gameUuid":"` + started.GameUUID.String() +
		`","gameData":{"turn":42}}}`
	if err := ownerConn.WriteMessage(websocket.TextMessage, []byte(turn)); err != nil {
		t.Fatalf("write turn: %v", err)
	}

	deadline := time.Now().Add(testWait)
	for {
		if time.Now().After(deadline) {
			t.Fatal("no updateGameData received")
		}
		ev := readEvent(t, memberConn)
		if ev.Type != ws.EventTypeUpdateGameData {
			continue
		}
		content, _ := json.Marshal(ev.Content)
		var update ws.UpdateGameDataContent
		if err := json.Unmarshal(content, &update); err != nil {
			t.Fatalf("decode content: %v", err)
		}
		if update.GameUUID != started.GameUUID || update.GameDataID != 1 {
			t.Errorf("update = %+v, want game %s at version 1", update, started.GameUUID)
		}
		return
	}
}

func TestWebsocketRejectsInvalidFrames(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup("alice")
	conn := s.dialWS(token)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != ws.EventTypeInvalidMessage {
		t.Errorf("event type = %q, want invalidMessage", ev.Type)
	}
}
