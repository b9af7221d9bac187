package server

import (
	"errors"
	"net/http"

	"github.com/alfredjeanlab/hazel/internal/outcome"
)

// handleListCircles handles GET /v1/circles.
func (s *HazelServer) handleListCircles(w http.ResponseWriter, _ *http.Request) {
	circles := s.outcome.Circles()
	out := make([]any, 0, len(circles))
	for _, name := range circles.Names() {
		out = append(out, circles[name])
	}
	writeJSON(w, http.StatusOK, map[string]any{"circles": out})
}

// handleCreateBacklogItem handles POST /v1/circles/{circle}/backlog.
func (s *HazelServer) handleCreateBacklogItem(w http.ResponseWriter, r *http.Request) {
	var req outcome.BacklogRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Circle = r.PathValue("circle")

	rec, err := s.outcome.NewBacklogItem(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// startMeetingRequest is the JSON body for PUT /v1/circles/{circle}/meeting.
type startMeetingRequest struct {
	Participants []string `json:"participants"`
}

// handleStartMeeting handles PUT /v1/circles/{circle}/meeting. A new
// participant list replaces the running session.
func (s *HazelServer) handleStartMeeting(w http.ResponseWriter, r *http.Request) {
	var req startMeetingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.outcome.StartMeeting(r.Context(), r.PathValue("circle"), req.Participants)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleGetMeeting handles GET /v1/circles/{circle}/meeting.
func (s *HazelServer) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	sess, err := s.outcome.Meeting(r.PathValue("circle"))
	if errors.Is(err, outcome.ErrNoMeeting) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
