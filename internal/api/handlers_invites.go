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

// CreateInvite invites a friend into the caller's lobby and notifies the
// invitee with incomingInvite.
func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInviteRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid_json", "malformed request body")
		return
	}
	if req.Friend == uuid.Nil || req.LobbyUUID == uuid.Nil {
		badRequest(w, "invalid_uuid", "friend and lobby uuids are required")
		return
	}

	me := account(r)
	invite, lobbyName, err := h.db.CreateInvite(r.Context(), me, req.Friend, req.LobbyUUID)
	if err != nil {
		writeDBError(w, err)
		return
	}

	if from, err := h.db.GetAccount(r.Context(), me); err != nil {
		logging.Warn().Err(err).Msg("Failed to load sender for invite event")
	} else {
		h.registry.Send(req.Friend, ws.Event{
			Type: ws.EventTypeIncomingInvite,
			Content: ws.IncomingInviteContent{
				InviteUUID: invite.UUID,
				From:       from.Response(),
				LobbyUUID:  req.LobbyUUID,
				LobbyName:  lobbyName,
			},
		})
	}
	respond(w, http.StatusCreated, invite)
}

// GetInvites lists the invites addressed to the caller.
func (h *Handler) GetInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.db.GetInvites(r.Context(), account(r))
	if err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string][]models.InviteResponse{"invites": invites})
}

// DeleteInvite withdraws or declines an invite.
func (h *Handler) DeleteInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		badRequest(w, "invalid_uuid", "malformed invite uuid")
		return
	}
	if err := h.db.DeleteInvite(r.Context(), invite, account(r)); err != nil {
		writeDBError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}
