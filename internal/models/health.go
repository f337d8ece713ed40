// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package models

// HealthStatus is the response of GET /api/v1/health.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	DatabaseConnected bool    `json:"database_connected"`
	QueryCount        int64   `json:"query_count"`
	OpenConnections   uint64  `json:"open_connections"`
	Uptime            float64 `json:"uptime_seconds"`
}

// VersionResponse is the response of GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}
