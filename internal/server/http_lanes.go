package server

import (
	"net/http"
	"strings"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
)

// handleListLanes handles GET /v1/lanes.
func (s *HazelServer) handleListLanes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"lanes": s.lanes.Status()})
}

// handleRunLane handles POST /v1/lanes/{lane}/run. It runs one tick
// synchronously and answers 409 while the lane is already running.
func (s *HazelServer) handleRunLane(w http.ResponseWriter, r *http.Request) {
	lane := lifecycle.Lane(r.PathValue("lane"))
	report, err := s.lanes.RunOnce(r.Context(), lane)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// askRequest is the JSON body for POST /v1/ask.
type askRequest struct {
	Question string `json:"question"`
}

// handleAsk handles POST /v1/ask.
func (s *HazelServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	answer, err := s.outcome.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
