// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Session authentication gates the endpoint; the game client is not
	// a browser, so origin checks add nothing.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Websocket upgrades the connection, lists it with the registry and runs
// the heartbeat/ingress monitor until the connection dies. Game
// co-players are told the account came online via clientReconnected.
func (h *Handler) Websocket(w http.ResponseWriter, r *http.Request) {
	me := account(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	connRef := h.registry.Open(me, conn)

	games, err := h.db.GamesWithPeers(r.Context(), me)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to list games for reconnect fan-out")
	}
	for _, game := range games {
		h.sendToAll(game.Players, ws.Event{
			Type: ws.EventTypeClientReconnected,
			Content: ws.ClientStateContent{
				GameUUID: game.GameUUID,
				UUID:     me,
			},
		})
	}

	monitor := ws.NewMonitor(h.registry, me, conn, connRef, h, h.cfg.Websocket)
	monitor.Run()
}
