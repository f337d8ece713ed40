// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tabula-srv/tabula/internal/config"
	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/metrics"
)

// controlWriteWait bounds a single ping control-frame write.
const controlWriteWait = 5 * time.Second

// Conn is the read-and-control half of a websocket connection as the
// monitor needs it. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	SetReadLimit(int64)
	SetPongHandler(func(string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// TurnHandler processes a validated finishedTurn upload from a client.
type TurnHandler interface {
	HandleFinishedTurn(ctx context.Context, account uuid.UUID, turn *FinishedTurn) error
}

// Monitor supervises the liveness and ingress of one connection. It reads
// every inbound frame, answers finishedTurn uploads, probes with pings on
// a fixed interval and declares the connection dead when acknowledgements
// stop arriving. Exactly one DisconnectNotify is issued per connection no
// matter which path detects the death first.
type Monitor struct {
	registry *Registry
	account  uuid.UUID
	conn     Conn
	connRef  *Connection
	turns    TurnHandler

	interval       time.Duration
	timeout        time.Duration
	maxMessageSize int64

	// lastAck is the unix-nano time of the last pong (or successful read).
	lastAck    atomic.Int64
	notifyOnce sync.Once
	done       chan struct{}
}

// NewMonitor wires a monitor to the connection previously listed with
// Registry.Open. The turn handler may be nil, in which case finishedTurn
// uploads are rejected as invalid.
func NewMonitor(registry *Registry, account uuid.UUID, conn Conn, connRef *Connection,
	turns TurnHandler, cfg config.WebsocketConfig) *Monitor {
	return &Monitor{
		registry:       registry,
		account:        account,
		conn:           conn,
		connRef:        connRef,
		turns:          turns,
		interval:       cfg.HeartbeatInterval,
		timeout:        cfg.HeartbeatTimeout,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// Run blocks until the connection dies. Call it from the upgrade handler's
// goroutine; the http server already gives every connection one.
func (m *Monitor) Run() {
	m.done = make(chan struct{})
	m.lastAck.Store(time.Now().UnixNano())

	m.conn.SetReadLimit(m.maxMessageSize)
	m.conn.SetPongHandler(func(string) error {
		m.lastAck.Store(time.Now().UnixNano())
		return nil
	})

	go m.heartbeat()
	m.readLoop()

	close(m.done)
	m.notifyDisconnect()
}

// readLoop consumes inbound frames until the socket errors out. Invalid
// messages are answered in-band and never kill the connection; only a
// transport-level failure ends the loop.
func (m *Monitor) readLoop() {
	log := logging.With().
		Uint64("conn_id", m.connRef.ID()).
		Str("account", m.account.String()).
		Logger()

	for {
		messageType, data, err := m.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("Websocket read ended")
			return
		}
		// Any traffic proves the peer is alive, not just pongs.
		m.lastAck.Store(time.Now().UnixNano())

		if messageType != websocket.TextMessage {
			log.Debug().Int("message_type", messageType).Msg("Non-text frame rejected")
			m.connRef.Reject()
			continue
		}

		turn, err := ParseClientMessage(data)
		if err != nil {
			log.Debug().Err(err).Msg("Invalid client message rejected")
			m.connRef.Reject()
			continue
		}

		if m.turns == nil {
			m.connRef.Reject()
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		err = m.turns.HandleFinishedTurn(ctx, m.account, turn)
		cancel()
		if err != nil {
			log.Warn().Err(err).
				Str("game", turn.GameUUID.String()).
				Msg("Finished turn rejected")
			m.connRef.Reject()
		}
	}
}

// heartbeat pings the peer every interval and checks, before each probe,
// how long ago the last acknowledgement arrived. Past the timeout the
// socket is closed, which unblocks the read loop.
func (m *Monitor) heartbeat() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			silence := time.Since(time.Unix(0, m.lastAck.Load()))
			if silence > m.timeout {
				metrics.WSHeartbeatTimeouts.Inc()
				logging.Warn().
					Uint64("conn_id", m.connRef.ID()).
					Str("account", m.account.String()).
					Dur("silence", silence).
					Msg("Heartbeat timeout, closing connection")
				_ = m.conn.Close()
				return
			}

			err := m.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(controlWriteWait))
			if err != nil {
				logging.Debug().
					Uint64("conn_id", m.connRef.ID()).
					Err(err).
					Msg("Ping write failed")
				_ = m.conn.Close()
				return
			}
		}
	}
}

// notifyDisconnect reports the death to the registry exactly once.
func (m *Monitor) notifyDisconnect() {
	m.notifyOnce.Do(func() {
		m.registry.DisconnectNotify(m.account, m.connRef)
	})
}
