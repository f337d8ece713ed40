// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabula-srv/tabula/internal/auth"
	"github.com/tabula-srv/tabula/internal/middleware"
)

// NewRouter builds the full route tree.
//
// The REST surface lives under /api/v2. Health, version and metrics stay
// outside the versioned tree so probes and scrapers are unaffected by
// API versioning.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Server.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		// Credentialed requests are only honored for explicitly configured
		// origins; the wildcard default serves token-based clients.
		AllowCredentials: len(h.cfg.Server.CORSOrigins) > 0 && h.cfg.Server.CORSOrigins[0] != "*",
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/health", h.Health)
	r.Get("/api/version", h.Version)

	security := h.cfg.Security
	loginLimiter := newIPLimiter(security.LoginRateLimit)

	r.Route("/api/v2", func(r chi.Router) {
		r.Use(httprate.LimitByIP(security.RateLimitReqs, security.RateLimitWindow))

		// Unauthenticated endpoints.
		r.With(loginLimiter.Middleware).Post("/auth/login", h.Login)
		r.With(loginLimiter.Middleware).Post("/accounts/register", h.Register)

		// Everything else needs a session.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(h.sessions))

			r.Get("/auth/logout", h.Logout)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/me", h.Me)
				r.Put("/me", h.UpdateMe)
				r.Delete("/me", h.DeleteMe)
				r.Post("/me/setPassword", h.SetPassword)
				r.Post("/lookup", h.LookupAccount)
				r.Get("/{uuid}", h.GetAccount)
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", h.GetFriends)
				r.Post("/", h.CreateFriendRequest)
				r.Put("/{uuid}", h.AcceptFriendRequest)
				r.Delete("/{uuid}", h.DeleteFriend)
			})

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", h.GetChatRooms)
				r.Get("/{uuid}", h.GetChatRoom)
				r.Post("/{uuid}", h.SendChatMessage)
			})

			r.Route("/lobbies", func(r chi.Router) {
				r.Get("/", h.GetLobbies)
				r.Post("/", h.CreateLobby)
				r.Get("/{uuid}", h.GetLobby)
				r.Post("/{uuid}/join", h.JoinLobby)
				r.Post("/{uuid}/leave", h.LeaveLobby)
				r.Post("/{uuid}/kick/{player}", h.KickPlayer)
				r.Post("/{uuid}/start", h.StartGame)
			})

			r.Route("/invites", func(r chi.Router) {
				r.Get("/", h.GetInvites)
				r.Post("/", h.CreateInvite)
				r.Delete("/{uuid}", h.DeleteInvite)
			})

			r.Route("/games", func(r chi.Router) {
				r.Get("/", h.GetGames)
				r.Get("/{uuid}", h.GetGame)
				r.Put("/{uuid}", h.UploadGameState)
			})

			r.Get("/ws", h.Websocket)
		})
	})

	return r
}
