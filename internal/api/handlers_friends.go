// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/models"
	"github.com/tabula-srv/tabula/internal/ws"
)

// GetFriends lists friendships and pending requests of the caller.
func (h *Handler) GetFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.db.GetFriends(r.Context(), account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, friends)
}

// CreateFriendRequest sends a friend request and notifies the target
// with incomingFriendRequest.
func (h *Handler) CreateFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFriendRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if req.UUID == uuid.Nil {
		badRequest(w, "invalid_uuid", "target account uuid is required")
		return
	}

	me := account(r)
	created, err := h.db.CreateFriendRequest(r.Context(), me, req.UUID)
	if err != nil {
		writeDBError(w, err)
		return
	}

	if from, err := h.db.GetAccount(r.Context(), me); err != nil {
		logging.Warn().Err(err).Msg("Failed to load sender for friend request event")
	} else {
		h.registry.Send(req.UUID, ws.Event{
			Type:    ws.EventTypeIncomingFriendRequest,
			Content: ws.IncomingFriendRequestContent{From: from.Response()},
		})
	}
	respond(w, http.StatusCreated, created)
}

// AcceptFriendRequest confirms a pending request addressed to the caller
// and notifies the requester with friendshipChanged accepted.
func (h *Handler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	request, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed friend request uuid")
		return
	}

	me := account(r)
	requester, chatRoom, err := h.db.AcceptFriendRequest(r.Context(), request, me)
	if err != nil {
		writeDBError(w, err)
		return
	}

	if accepter, err := h.db.GetAccount(r.Context(), me); err != nil {
		logging.Warn().Err(err).Msg("Failed to load accepter for friendship event")
	} else {
		h.registry.Send(requester, ws.Event{
			Type: ws.EventTypeFriendshipChanged,
			Content: ws.FriendshipChangedContent{
				From:   accepter.Response(),
				Status: ws.FriendshipAccepted,
			},
		})
	}
	respond(w, http.StatusOK, map[string]uuid.UUID{"chat_room_uuid": chatRoom})
}

// DeleteFriend rejects a pending request or dissolves a friendship and
// notifies the other party with friendshipChanged.
func (h *Handler) DeleteFriend(w http.ResponseWriter, r *http.Request) {
	friend, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed friendship uuid")
		return
	}

	me := account(r)
	other, wasRequest, err := h.db.DeleteFriend(r.Context(), friend, me)
	if err != nil {
		writeDBError(w, err)
		return
	}

	status := ws.FriendshipDeleted
	if wasRequest {
		status = ws.FriendshipRejected
	}
	if caller, err := h.db.GetAccount(r.Context(), me); err != nil {
		logging.Warn().Err(err).Msg("Failed to load caller for friendship event")
	} else {
		h.registry.Send(other, ws.Event{
			Type: ws.EventTypeFriendshipChanged,
			Content: ws.FriendshipChangedContent{
				From:   caller.Response(),
				Status: status,
			},
		})
	}
	respond(w, http.StatusOK, nil)
}
