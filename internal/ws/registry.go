// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

// Package ws implements the websocket presence and notification subsystem:
// a registry actor owning the account-to-connections table, one sender
// goroutine per connection, a heartbeat/ingress monitor per connection,
// and the disconnect cleanup worker that repairs lobby and game state.
package ws

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/config"
	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/metrics"
)

// Registry owns the table of open connections keyed by account. All
// access is funneled through a single command loop; the public methods
// only ever touch the command channel, never the table.
//
// Registry implements suture.Service via Serve.
type Registry struct {
	commands chan command
	cleaner  Cleaner

	sendQueueSize int
	nextConnID    atomic.Uint64

	// connections is owned exclusively by the Serve loop.
	connections map[uuid.UUID][]*Connection
}

// NewRegistry creates a registry. Serve must be running before the other
// methods are useful.
func NewRegistry(cfg config.WebsocketConfig, cleaner Cleaner) *Registry {
	return &Registry{
		commands:      make(chan command, cfg.CommandQueueSize),
		cleaner:       cleaner,
		sendQueueSize: cfg.SendQueueSize,
		connections:   make(map[uuid.UUID][]*Connection),
	}
}

// Serve runs the command loop until ctx is canceled, then tells every
// sender to close its socket and exit.
func (r *Registry) Serve(ctx context.Context) error {
	logging.Info().Msg("Websocket registry started")

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()
		case cmd := <-r.commands:
			r.handle(cmd)
		}
	}
}

// Open lists a freshly upgraded connection for the account and starts its
// sender. Always succeeds; multiple connections per account are allowed.
// The returned Connection is handed to the monitor so a later
// DisconnectNotify can name exactly which connection died.
func (r *Registry) Open(account uuid.UUID, sink Sink) *Connection {
	conn := &Connection{
		id:      r.nextConnID.Add(1),
		account: account,
		sink:    sink,
		send:    make(chan Event, r.sendQueueSize),
	}
	r.commands <- &openCmd{account: account, conn: conn}
	return conn
}

// Close force-closes every connection of the account. Used on logout and
// account deletion. Unknown accounts are a no-op.
func (r *Registry) Close(account uuid.UUID) {
	r.commands <- &closeCmd{account: account}
}

// Send fans the event out to every open connection of the account.
// Fire-and-forget: offline accounts and full sender queues drop the event.
func (r *Registry) Send(account uuid.UUID, event Event) {
	r.commands <- &sendCmd{account: account, event: event}
}

// DisconnectNotify reports that the given connection is dead. The entry is
// pruned synchronously in the loop; the persistent-state cleanup runs in a
// separate goroutine. Reporting an unlisted connection is a no-op, which
// makes the call idempotent.
func (r *Registry) DisconnectNotify(account uuid.UUID, conn *Connection) {
	r.commands <- &disconnectCmd{account: account, conn: conn}
}

// IsOnline reports whether the account has at least one open connection.
func (r *Registry) IsOnline(ctx context.Context, account uuid.UUID) (bool, error) {
	reply := make(chan bool, 1)
	select {
	case r.commands <- &presenceCmd{account: account, reply: reply}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case online := <-reply:
		return online, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// OnlineStates answers presence for many accounts in one registry pass,
// so list endpoints see a single consistent snapshot.
func (r *Registry) OnlineStates(ctx context.Context, accounts []uuid.UUID) ([]bool, error) {
	reply := make(chan []bool, 1)
	select {
	case r.commands <- &presenceBulkCmd{accounts: accounts, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case states := <-reply:
		return states, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ConnectionCount returns the total number of open connections.
func (r *Registry) ConnectionCount(ctx context.Context) (uint64, error) {
	reply := make(chan uint64, 1)
	select {
	case r.commands <- &countCmd{reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// handle processes one command. Exhaustive over the command sum; a new
// command type without a case here panics in development rather than
// silently vanishing.
func (r *Registry) handle(cmd command) {
	switch c := cmd.(type) {
	case *openCmd:
		r.handleOpen(c)
	case *closeCmd:
		r.handleClose(c)
	case *sendCmd:
		r.handleSend(c)
	case *disconnectCmd:
		r.handleDisconnect(c)
	case *presenceCmd:
		_, online := r.connections[c.account]
		replyTo(c.reply, online)
	case *presenceBulkCmd:
		states := make([]bool, len(c.accounts))
		for i, account := range c.accounts {
			_, states[i] = r.connections[account]
		}
		replyTo(c.reply, states)
	case *countCmd:
		var n uint64
		for _, conns := range r.connections {
			n += uint64(len(conns))
		}
		replyTo(c.reply, n)
	default:
		logging.Error().Msgf("Unknown registry command %T", cmd)
	}
}

func (r *Registry) handleOpen(c *openCmd) {
	r.connections[c.account] = append(r.connections[c.account], c.conn)
	go c.conn.runSender()

	metrics.WSOpenConnections.Inc()
	logging.Debug().
		Str("account", c.account.String()).
		Uint64("conn_id", c.conn.id).
		Int("account_conns", len(r.connections[c.account])).
		Msg("Websocket connection opened")
}

func (r *Registry) handleClose(c *closeCmd) {
	conns, ok := r.connections[c.account]
	if !ok {
		return
	}
	delete(r.connections, c.account)
	for _, conn := range conns {
		r.quitSender(conn)
	}
	metrics.WSOpenConnections.Sub(float64(len(conns)))
	logging.Debug().
		Str("account", c.account.String()).
		Int("closed", len(conns)).
		Msg("Websocket connections force-closed")
}

func (r *Registry) handleSend(c *sendCmd) {
	conns, ok := r.connections[c.account]
	if !ok {
		// Offline recipients are expected; the event is simply not delivered.
		return
	}
	for _, conn := range conns {
		if !conn.enqueue(c.event) {
			metrics.WSEventsDropped.WithLabelValues(string(c.event.Type)).Inc()
			logging.Warn().
				Str("account", c.account.String()).
				Uint64("conn_id", conn.id).
				Str("event_type", string(c.event.Type)).
				Msg("Sender queue full, event dropped")
		}
	}
}

func (r *Registry) handleDisconnect(c *disconnectCmd) {
	conns, ok := r.connections[c.account]
	if !ok {
		// Already pruned; duplicate notify from a racing monitor path.
		return
	}

	idx := -1
	for i, conn := range conns {
		if conn == c.conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	remaining := append(conns[:idx], conns[idx+1:]...)
	if len(remaining) == 0 {
		delete(r.connections, c.account)
	} else {
		r.connections[c.account] = remaining
	}
	metrics.WSOpenConnections.Dec()

	// The socket is already dead; the sentinel just lets the sender exit
	// instead of leaking on an open channel.
	r.quitSender(c.conn)

	logging.Debug().
		Str("account", c.account.String()).
		Uint64("conn_id", c.conn.id).
		Int("remaining", len(remaining)).
		Msg("Websocket connection pruned")

	// Presence is gone from the table before the repair starts, so a
	// reconnect during cleanup lists a fresh connection rather than
	// resurrecting this one.
	go r.runCleanup(c.account)
}

// quitSender offers the quit sentinel without blocking the loop. If the
// queue is full the sender is already draining toward a write error on
// the closed socket and will exit on its own.
func (r *Registry) quitSender(conn *Connection) {
	if !conn.enqueue(quitEvent) {
		logging.Debug().
			Uint64("conn_id", conn.id).
			Msg("Sender queue full, quit sentinel dropped")
	}
}

// shutdown tells every sender to close and exit. The table is cleared so
// a restarted Serve begins empty.
func (r *Registry) shutdown() {
	var n int
	for _, conns := range r.connections {
		for _, conn := range conns {
			r.quitSender(conn)
			n++
		}
	}
	r.connections = make(map[uuid.UUID][]*Connection)
	metrics.WSOpenConnections.Set(0)
	logging.Info().Int("connections", n).Msg("Websocket registry stopped")
}

// replyTo answers a query without ever blocking the loop. The reply
// channels are buffered and single-use, so a failed send means the caller
// gave up; log and move on.
func replyTo[T any](reply chan<- T, value T) {
	select {
	case reply <- value:
	default:
		logging.Warn().Msg("Registry query reply dropped, caller gone")
	}
}
