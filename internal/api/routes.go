package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/intermernet/sportstats/internal/database"
)

// RegisterRoutes sets up all the API endpoints and middleware for the application.
func (s *Server) RegisterRoutes(r *chi.Mux) {
	// --- Global Middleware (Applied to ALL routes) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs incoming requests
	r.Use(middleware.Recoverer) // Recovers from panics and returns a 500 error

	// --- REST API Group with CORS ---
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   append([]string{s.config.FrontendURL}, s.config.CORSAllowOrigins...),
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300, // How long the browser can cache preflight results
		}))
		if s.config.RateLimitEnabled {
			r.Use(s.rateLimitMiddleware(s.config.RateLimitRequests, s.config.RateLimitWindow))
		}

		r.Get("/health", s.handleHealth)

		// Players & teams
		r.Get("/players", s.handleListPlayers)
		r.Get("/players/{id}", s.handleGetPlayer)
		r.Get("/players/{id}/stats", s.handleGetPlayerStats)
		r.Get("/teams", s.handleListTeams)
		r.Get("/teams/{id}", s.handleGetTeam)
		r.Get("/leagues", s.handleListLeagues)
		r.Get("/search/{term}", s.handleSearch)
		r.Get("/compare", s.handleComparePlayers)

		// Aggregates
		r.Route("/stats", func(r chi.Router) {
			r.Get("/dashboard", s.handleDashboardStats)
			r.Get("/top-player", s.handleTopPlayer)
			r.Get("/highest-potential", s.handleHighestPotential)
			r.Get("/avg-rating", s.handleAvgRating)
			r.Get("/avg-player-age", s.handleAvgPlayerAge)
			r.Get("/top-scorers", s.handleTopScorers)
			r.Get("/top-playmakers", s.handleTopPlaymakers)
		})

		// Reports
		r.Get("/views", s.handleAllViews)
		r.Get("/views/{view}", s.handleGetView)

		// Exports
		r.Get("/export/players", s.handleExportPlayers)
		r.Get("/export/views/{view}", s.handleExportView)

		// Auth routes
		r.Post("/auth/register", s.handleRegisterUser)
		r.Post("/auth/login", s.handleLoginUser)
		r.Get("/auth/google/login", s.handleGoogleLogin)
		r.Get("/auth/google/callback", s.handleGoogleCallback)

		// Live match feed
		r.Get("/external/matches", s.handleExternalMatches)
		r.Get("/external/saved-matches", s.handleSavedMatches)

		// --- Authenticated REST Routes ---
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleGetMe)
			r.Get("/events/stream", s.handleSSE)

			r.Post("/players", s.handleCreatePlayer)
			r.Post("/teams", s.handleCreateTeam)

			r.With(s.requireRole(database.RoleAdmin)).Post("/external/save-matches", s.handleSaveMatches)
		})
	})

	// --- Static dashboard files ---
	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}
