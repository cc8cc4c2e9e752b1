package api

import (
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/synastry-app/synastry-api/internal/apperr"
)

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	cardID := r.URL.Query().Get("card_id")
	if cardID == "" {
		writeError(w, eris.Wrap(apperr.ErrInvalidArgument, "card_id is required"))
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	page, err := s.ranking.GetRankings(r.Context(), UserID(r.Context()), cardID, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleRecompute forces a cache refresh for the caller's card. Subject to the
// per-card cooldown; within the window it returns 429.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID string `json:"card_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.CardID == "" {
		writeError(w, eris.Wrap(apperr.ErrInvalidArgument, "card_id is required"))
		return
	}

	if err := s.ranking.Recompute(r.Context(), UserID(r.Context()), req.CardID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recomputed"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
