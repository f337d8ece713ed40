// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package ws

import (
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/metrics"
)

// Sink is the write half of a websocket connection as the sender needs it.
// *websocket.Conn satisfies it.
type Sink interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection pairs a live socket with its bounded outbound queue. The
// sender goroutine is the sole writer of data frames on the socket;
// control frames (pings) may be written concurrently via WriteControl,
// which gorilla documents as safe alongside WriteMessage.
type Connection struct {
	id      uint64
	account uuid.UUID
	sink    Sink
	send    chan Event
}

// ID identifies the connection uniquely for the process lifetime.
func (c *Connection) ID() uint64 { return c.id }

// enqueue offers an event to the outbound queue without blocking.
// A full queue means a slow or stuck reader; the event is dropped and
// the caller decides whether that matters.
func (c *Connection) enqueue(ev Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Reject enqueues an invalidMessage response on this connection. Used by
// the ingress monitor so the reply travels through the ordered outbound
// queue rather than racing the sender for the socket.
func (c *Connection) Reject() {
	metrics.WSInvalidMessages.Inc()
	if !c.enqueue(InvalidMessageEvent()) {
		metrics.WSEventsDropped.WithLabelValues(string(EventTypeInvalidMessage)).Inc()
	}
}

// runSender drains the outbound queue onto the socket, preserving enqueue
// order. It exits on the quit sentinel or on the first write error; either
// way the socket is closed so the paired monitor unblocks.
func (c *Connection) runSender() {
	log := logging.With().
		Uint64("conn_id", c.id).
		Str("account", c.account.String()).
		Logger()

	for ev := range c.send {
		if ev.isQuit() {
			if err := c.sink.Close(); err != nil {
				log.Debug().Err(err).Msg("Close after quit sentinel")
			}
			log.Debug().Msg("Sender exiting on quit sentinel")
			return
		}

		data, err := json.Marshal(ev)
		if err != nil {
			// Should not happen for our own event types; skip the event
			// rather than kill a healthy connection.
			log.Error().Err(err).Str("event_type", string(ev.Type)).
				Msg("Failed to marshal outbound event")
			continue
		}

		if err := c.sink.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("event_type", string(ev.Type)).
				Msg("Write failed, closing connection")
			_ = c.sink.Close()
			return
		}
		metrics.WSEventsDelivered.WithLabelValues(string(ev.Type)).Inc()
	}
}
