package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/outcome"
	"github.com/alfredjeanlab/hazel/internal/store"
	"github.com/alfredjeanlab/hazel/internal/transform"
)

// maxBodyBytes bounds request bodies; the longest legitimate field is a
// 1500 character description.
const maxBodyBytes = 64 << 10

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *HazelServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthHTTPPath, s.handleHealth)
	mux.HandleFunc("GET /v1/circles", s.handleListCircles)
	mux.HandleFunc("POST /v1/circles/{circle}/backlog", s.handleCreateBacklogItem)
	mux.HandleFunc("PUT /v1/circles/{circle}/meeting", s.handleStartMeeting)
	mux.HandleFunc("GET /v1/circles/{circle}/meeting", s.handleGetMeeting)
	mux.HandleFunc("POST /v1/decisions", s.handleRecordOutcome)
	mux.HandleFunc("GET /v1/decisions/{id}", s.handleGetDecision)
	mux.HandleFunc("PATCH /v1/decisions/{id}/fields", s.handleEditField)
	mux.HandleFunc("PATCH /v1/decisions/{id}/meta", s.handleEditControl)
	mux.HandleFunc("GET /v1/followups", s.handleListFollowUps)
	mux.HandleFunc("GET /v1/lanes", s.handleListLanes)
	mux.HandleFunc("POST /v1/lanes/{lane}/run", s.handleRunLane)
	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	return accessLog(s.logger, AuthMiddleware(authToken, mux))
}

// handleHealth handles GET /v1/health.
func (s *HazelServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeServiceError maps a service error onto a status code. Unexpected
// errors are logged and reported without detail.
func (s *HazelServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func errorStatus(err error) int {
	var cbe *model.ControlBlockError
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, outcome.ErrUnknownCircle),
		errors.Is(err, lifecycle.ErrUnknownLane):
		return http.StatusNotFound
	case errors.Is(err, outcome.ErrNoMeeting),
		errors.Is(err, lifecycle.ErrLaneBusy),
		errors.Is(err, lifecycle.ErrLaneDisabled),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, outcome.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, outcome.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoControlBlock), errors.As(err, &cbe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transform.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, transform.ErrMalformed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
