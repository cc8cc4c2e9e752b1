package api

import (
	"net/http"

	"github.com/synastry-app/synastry-api/internal/model"
)

func (s *Server) handleBirthData(w http.ResponseWriter, r *http.Request) {
	var data model.BirthData
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, err)
		return
	}

	state, err := s.rectify.SubmitBirthData(r.Context(), UserID(r.Context()), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleNextQuestion returns the next elimination question, or 204 when
// rectification is finished for this user.
func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.rectify.Next(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if q == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID     string `json:"question_id"`
		SelectedOption string `json:"selected_option"`
		Source         string `json:"source"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = "questionnaire"
	}

	result, err := s.rectify.Answer(r.Context(), UserID(r.Context()), req.QuestionID, req.SelectedOption, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
