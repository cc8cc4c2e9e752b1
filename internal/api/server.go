// Package api exposes the HTTP surface: onboarding, rectification questions,
// daily matches and the compatibility rankings.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/synastry-app/synastry-api/internal/match"
	"github.com/synastry-app/synastry-api/internal/ranking"
	"github.com/synastry-app/synastry-api/internal/rectify"
)

// Server wires the domain services into HTTP handlers.
type Server struct {
	rectify    *rectify.Service
	actions    *match.Actions
	runner     *match.Runner
	ranking    *ranking.Refresher
	sessions   Sessions
	cronSecret string
	origins    []string
}

// NewServer creates the API server.
func NewServer(
	rectifySvc *rectify.Service,
	actions *match.Actions,
	runner *match.Runner,
	refresher *ranking.Refresher,
	sessions Sessions,
	cronSecret string,
	allowedOrigins []string,
) *Server {
	return &Server{
		rectify:    rectifySvc,
		actions:    actions,
		runner:     runner,
		ranking:    refresher,
		sessions:   sessions,
		cronSecret: cronSecret,
		origins:    allowedOrigins,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Job trigger, guarded by the shared cron secret instead of a session.
		r.With(s.requireCronSecret).Post("/matches/run", s.handleMatchRun)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/birth-data", s.handleBirthData)
			r.Get("/rectification/next-question", s.handleNextQuestion)
			r.Post("/rectification/answer", s.handleAnswer)

			r.Get("/matches/today", s.handleMatchesToday)
			r.Post("/matches/{matchID}", s.handleMatchAction)

			r.Get("/ranking", s.handleRankings)
			r.Post("/ranking/recompute", s.handleRecompute)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
