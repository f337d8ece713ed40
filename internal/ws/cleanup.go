// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tabula-srv/tabula/internal/logging"
	"github.com/tabula-srv/tabula/internal/metrics"
	"github.com/tabula-srv/tabula/internal/models"
)

// cleanupTimeout bounds one disconnect cleanup transaction.
const cleanupTimeout = 30 * time.Second

// Cleaner repairs persistent state after an account's last connection is
// gone: lobbies it owned are closed, lobbies it sat in are left, and the
// set of co-players to notify is collected. All in one transaction, so a
// crash mid-repair leaves either the old state or the new one, never a
// half-closed lobby.
type Cleaner interface {
	CleanupDisconnect(ctx context.Context, account uuid.UUID) (*CleanupResult, error)
}

// CleanupResult describes what a committed cleanup changed, with enough
// identity information to build the follow-up notifications.
type CleanupResult struct {
	Account models.AccountResponse

	// ClosedLobby is the lobby the account owned, if any. Ownership is
	// exclusive, so there is at most one.
	ClosedLobby *ClosedLobby

	// LeftLobbies are lobbies the account was a non-owner member of.
	LeftLobbies []LeftLobby

	// Games lists every game the account plays in and its co-players.
	Games []GameMembers
}

// ClosedLobby is an owned lobby that was deleted, with the members who
// need a lobbyClosed notification.
type ClosedLobby struct {
	LobbyUUID uuid.UUID
	Members   []uuid.UUID
}

// LeftLobby is a lobby the account was removed from, with the remaining
// members (owner included) who need a lobbyLeave notification.
type LeftLobby struct {
	LobbyUUID uuid.UUID
	Members   []uuid.UUID
}

// GameMembers is a game and the co-players who need a clientDisconnected
// notification.
type GameMembers struct {
	GameUUID uuid.UUID
	Players  []uuid.UUID
}

// runCleanup executes one disconnect cleanup off the registry loop and
// fans out the resulting notifications. Notifications are sent only after
// the transaction committed; on error nothing is sent and the failure is
// logged, leaving state repair to the next disconnect or restart.
func (r *Registry) runCleanup(account uuid.UUID) {
	log := logging.With().Str("account", account.String()).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.cleaner.CleanupDisconnect(ctx, account)
	metrics.CleanupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CleanupRuns.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Disconnect cleanup failed")
		return
	}
	metrics.CleanupRuns.WithLabelValues("committed").Inc()

	if result.ClosedLobby != nil {
		closed := Event{
			Type:    EventTypeLobbyClosed,
			Content: LobbyClosedContent{LobbyUUID: result.ClosedLobby.LobbyUUID},
		}
		for _, member := range result.ClosedLobby.Members {
			r.Send(member, closed)
		}
	}

	for _, left := range result.LeftLobbies {
		leave := Event{
			Type: EventTypeLobbyLeave,
			Content: LobbyMemberContent{
				LobbyUUID: left.LobbyUUID,
				Player:    result.Account,
			},
		}
		for _, member := range left.Members {
			r.Send(member, leave)
		}
	}

	for _, game := range result.Games {
		gone := Event{
			Type: EventTypeClientDisconnected,
			Content: ClientStateContent{
				GameUUID: game.GameUUID,
				UUID:     result.Account.UUID,
			},
		}
		for _, player := range game.Players {
			r.Send(player, gone)
		}
	}

	log.Debug().
		Bool("closed_lobby", result.ClosedLobby != nil).
		Int("left_lobbies", len(result.LeftLobbies)).
		Int("games", len(result.Games)).
		Dur("duration", time.Since(start)).
		Msg("Disconnect cleanup committed")
}
