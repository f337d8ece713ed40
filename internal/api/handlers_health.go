// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/models"
)

// Health reports database reachability, websocket connection count and
// uptime. Degraded states still answer 200 so load balancers can read
// the body; only a dead database flips the status field.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Seconds(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("Health check database ping failed")
		status.Status = "degraded"
	} else {
		status.DatabaseConnected = true
		status.QueryCount = h.db.QueryCount()
	}

	if count, err := h.registry.ConnectionCount(ctx); err == nil {
		status.OpenConnections = count
	}

	respond(w, http.StatusOK, status)
}

// Version returns the build version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, models.VersionResponse{Version: h.version})
}
