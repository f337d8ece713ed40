// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

// Package models defines the persisted entities and the API request and
// response types shared between the database and api packages.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered user.
type Account struct {
	UUID         uuid.UUID  `json:"uuid"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AccountResponse is the public view of an account. The password hash and
// login metadata never leave the server.
type AccountResponse struct {
	UUID        uuid.UUID `json:"uuid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

// Response converts an Account to its public view.
func (a *Account) Response() AccountResponse {
	return AccountResponse{
		UUID:        a.UUID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
	}
}

// RegisterAccountRequest is the payload for POST /accounts/register.
// Password length is enforced by the auth package, not a tag, because
// the same rule guards password changes.
type RegisterAccountRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32"`
	DisplayName string `json:"display_name" validate:"required,max=64"`
	Password    string `json:"password" validate:"required"`
}

// UpdateAccountRequest is the payload for PUT /accounts/me.
// Both fields are optional; at least one must be set.
type UpdateAccountRequest struct {
	// omitnil (not omitempty) so an explicit empty string is still rejected.
	Username    *string `json:"username,omitempty" validate:"omitnil,min=3,max=32"`
	DisplayName *string `json:"display_name,omitempty" validate:"omitnil,min=1,max=64"`
}

// SetPasswordRequest is the payload for POST /accounts/me/setPassword.
type SetPasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// LookupAccountRequest is the payload for POST /accounts/lookup.
type LookupAccountRequest struct {
	Username string `json:"username" validate:"required"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
