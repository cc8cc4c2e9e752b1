package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/synastry-app/synastry-api/internal/model"
)

func (s *Server) handleMatchesToday(w http.ResponseWriter, r *http.Request) {
	matches, err := s.actions.ListToday(r.Context(), UserID(r.Context()), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleMatchAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.actions.Apply(r.Context(), UserID(r.Context()), chi.URLParam(r, "matchID"), model.MatchAction(req.Action))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleMatchRun triggers the daily match job. Meant for the platform
// scheduler; re-runs on the same date are no-ops.
func (s *Server) handleMatchRun(w http.ResponseWriter, r *http.Request) {
	result, err := s.runner.RunDaily(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
