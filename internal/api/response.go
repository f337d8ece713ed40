// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

// Package api implements the REST surface and the websocket upgrade
// endpoint on a chi router.
package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/validation"
)

// maxBodySize bounds request bodies; game state uploads are the largest
// legitimate payloads.
const maxBodySize = 10 << 20

// respond writes v as JSON with the given status.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// decode reads the request body into v.
func decode(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// validated runs the request struct's `validate:` tags and writes the 400
// response on failure. Returns false when the request is invalid.
func validated(w http.ResponseWriter, v any) bool {
	if err := validation.ValidateStruct(v); err != nil {
		badRequest(w, "validation_error", err.Error())
		return false
	}
	return true
}
