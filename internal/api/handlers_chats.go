// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/models"
	"github.com/tabula-srv/tabula/internal/ws"
)

// GetChatRooms lists the caller's chat rooms.
func (h *Handler) GetChatRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.db.GetChatRooms(r.Context(), account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string][]models.ChatRoomSummary{"chat_rooms": rooms})
}

// GetChatRoom returns members and message history of one room.
func (h *Handler) GetChatRoom(w http.ResponseWriter, r *http.Request) {
	room, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed chat room uuid")
		return
	}
	loaded, err := h.db.GetChatRoom(r.Context(), room, account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, loaded)
}

// SendChatMessage stores a message and notifies the other members with
// incomingChatMessage.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	room, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed chat room uuid")
		return
	}
	var req models.SendChatMessageRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if !validated(w, &req) {
		return
	}

	me := account(r)
	message, members, err := h.db.CreateChatMessage(r.Context(), room, me, req.Message)
	if err != nil {
		writeDBError(w, err)
		return
	}

	event := ws.Event{
		Type: ws.EventTypeIncomingChatMessage,
		Content: ws.IncomingChatMessageContent{
			ChatUUID: room,
			Message:  *message,
		},
	}
	for _, member := range members {
		if member == me {
			continue
		}
		h.registry.Send(member, event)
	}
	respond(w, http.StatusCreated, message)
}
