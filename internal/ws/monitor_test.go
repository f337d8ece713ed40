// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type readResult struct {
	messageType int
	data        []byte
	err         error
}

// fakeConn scripts the read half of a connection. WriteControl optionally
// answers pings with a pong, like a live peer would.
type fakeConn struct {
	mu          sync.Mutex
	pongHandler func(string) error
	answerPings bool

	reads     chan readResult
	pings     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(answerPings bool) *fakeConn {
	return &fakeConn{
		answerPings: answerPings,
		reads:       make(chan readResult, 16),
		pings:       make(chan struct{}, 64),
		closed:      make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-c.reads:
		return r.messageType, r.data, r.err
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) SetReadLimit(int64) {}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pongHandler = h
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	if messageType == websocket.PingMessage {
		select {
		case c.pings <- struct{}{}:
		default:
		}
		c.mu.Lock()
		handler, answer := c.pongHandler, c.answerPings
		c.mu.Unlock()
		if answer && handler != nil {
			_ = handler("")
		}
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeTurnHandler struct {
	mu    sync.Mutex
	turns []*FinishedTurn
	err   error
}

func (f *fakeTurnHandler) HandleFinishedTurn(_ context.Context, _ uuid.UUID, turn *FinishedTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	return f.err
}

func (f *fakeTurnHandler) turnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns)
}

// startMonitor opens a connection, runs a monitor over the fake conn and
// returns once Run has been started.
func startMonitor(t *testing.T, r *Registry, account uuid.UUID, conn *fakeConn,
	sink *fakeSink, turns TurnHandler) {
	t.Helper()
	connRef := r.Open(account, sink)
	m := NewMonitor(r, account, conn, connRef, turns, testWSConfig())
	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()
	t.Cleanup(func() {
		conn.Close()
		select {
		case <-done:
		case <-time.After(testWait):
			t.Error("monitor did not stop")
		}
	})
}

func TestMonitorNotifiesOnReadError(t *testing.T) {
	cleaner := newFakeCleaner()
	r := startRegistry(t, cleaner)
	account := uuid.New()
	conn := newFakeConn(true)
	startMonitor(t, r, account, conn, newFakeSink(), nil)

	conn.reads <- readResult{err: errors.New("connection reset")}

	cleaner.waitForRun(t)
	online, err := r.IsOnline(context.Background(), account)
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if online {
		t.Error("account still online after read error")
	}
}

func TestMonitorRejectsInvalidMessages(t *testing.T) {
	r := startRegistry(t, newFakeCleaner())
	sink := newFakeSink()
	conn := newFakeConn(true)
	startMonitor(t, r, uuid.New(), conn, sink, nil)

	conn.reads <- readResult{messageType: websocket.BinaryMessage, data: []byte{0x01}}
	conn.reads <- readResult{messageType: websocket.TextMessage, data: []byte(`{"type":"nope"}`)}

	for i := 0; i < 2; i++ {
		ev := sink.nextEvent(t)
		if ev.Type != EventTypeInvalidMessage {
			t.Errorf("event %d type = %q, want %q", i, ev.Type, EventTypeInvalidMessage)
		}
	}
	if conn.isClosed() {
		t.Error("connection closed after invalid messages, should stay open")
	}
}

func TestMonitorDispatchesFinishedTurn(t *testing.T) {
	r := startRegistry(t, newFakeCleaner())
	turns := &fakeTurnHandler{}
	conn := newFakeConn(true)
	startMonitor(t, r, uuid.New(), conn, newFakeSink(), turns)

	game := uuid.New()
	conn.reads <- readResult{
		messageType: websocket.TextMessage,
		data: []byte(`{"type":"finishedTurn","content":{"gameUuid":"` +
			game.String() + `","gameData":{"turn":7}}}`),
	}

	deadline := time.Now().Add(testWait)
	for turns.turnCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("turn handler never invoked")
		}
		time.Sleep(5 * time.Millisecond)
	}
	turns.mu.Lock()
	got := turns.turns[0].GameUUID
	turns.mu.Unlock()
	if got != game {
		t.Errorf("turn game = %s, want %s", got, game)
	}
}

func TestMonitorRejectsTurnOnHandlerError(t *testing.T) {
	r := startRegistry(t, newFakeCleaner())
	sink := newFakeSink()
	turns := &fakeTurnHandler{err: errors.New("not a member")}
	conn := newFakeConn(true)
	startMonitor(t, r, uuid.New(), conn, sink, turns)

	game := uuid.New()
	conn.reads <- readResult{
		messageType: websocket.TextMessage,
		data: []byte(`{"type":"finishedTurn","content":{"gameUuid":"` +
			game.String() + `","gameData":{}}}`),
	}

	if ev := sink.nextEvent(t); ev.Type != EventTypeInvalidMessage {
		t.Errorf("event type = %q, want %q", ev.Type, EventTypeInvalidMessage)
	}
}

func TestMonitorHeartbeatTimeout(t *testing.T) {
	cleaner := newFakeCleaner()
	r := startRegistry(t, cleaner)
	account := uuid.New()
	// Peer never answers pings, so acknowledgements stop immediately.
	conn := newFakeConn(false)
	startMonitor(t, r, account, conn, newFakeSink(), nil)

	cleaner.waitForRun(t)
	if !conn.isClosed() {
		t.Error("connection not closed after heartbeat timeout")
	}
	if n := cleaner.callCount(); n != 1 {
		t.Errorf("cleanup ran %d times, want 1", n)
	}
}

func TestMonitorPongsKeepConnectionAlive(t *testing.T) {
	cfg := testWSConfig()
	r := startRegistry(t, newFakeCleaner())
	conn := newFakeConn(true)
	startMonitor(t, r, uuid.New(), conn, newFakeSink(), nil)

	// Wait for several pings; wait well past the timeout.
	for i := 0; i < 3; i++ {
		select {
		case <-conn.pings:
		case <-time.After(testWait):
			t.Fatal("no ping observed")
		}
	}
	time.Sleep(2 * cfg.HeartbeatTimeout)
	if conn.isClosed() {
		t.Error("connection closed although peer answered every ping")
	}
}
