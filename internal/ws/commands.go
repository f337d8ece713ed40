// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package ws

import "github.com/google/uuid"

// command is the closed set of operations the registry loop processes.
// Every mutation of the connection table goes through exactly one of
// these, serialized on a single channel, so the table needs no locking.
type command interface {
	isCommand()
}

// openCmd lists a freshly upgraded connection and starts its sender.
type openCmd struct {
	account uuid.UUID
	conn    *Connection
}

// closeCmd force-closes every connection of an account (logout, deletion).
type closeCmd struct {
	account uuid.UUID
}

// sendCmd fans an event out to all connections of an account.
type sendCmd struct {
	account uuid.UUID
	event   Event
}

// disconnectCmd reports a dead connection detected by its monitor.
type disconnectCmd struct {
	account uuid.UUID
	conn    *Connection
}

// presenceCmd asks whether an account has at least one open connection.
type presenceCmd struct {
	account uuid.UUID
	reply   chan<- bool
}

// presenceBulkCmd answers presence for many accounts in one pass.
type presenceBulkCmd struct {
	accounts []uuid.UUID
	reply    chan<- []bool
}

// countCmd asks for the total number of open connections.
type countCmd struct {
	reply chan<- uint64
}

func (*openCmd) isCommand()         {}
func (*closeCmd) isCommand()        {}
func (*sendCmd) isCommand()         {}
func (*disconnectCmd) isCommand()   {}
func (*presenceCmd) isCommand()     {}
func (*presenceBulkCmd) isCommand() {}
func (*countCmd) isCommand()        {}
