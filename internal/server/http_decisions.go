package server

import (
	"context"
	"net/http"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/outcome"
)

// handleRecordOutcome handles POST /v1/decisions.
func (s *HazelServer) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcome.OutcomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BacklogItemID == "" {
		writeError(w, http.StatusBadRequest, "backlog_item_id is required")
		return
	}
	rec, err := s.outcome.RecordOutcome(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleGetDecision handles GET /v1/decisions/{id}. The parsed control block
// is returned next to the record; a malformed block is reported, not fatal.
func (s *HazelServer) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	rec, err := s.outcome.Decision(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := map[string]any{"record": rec}
	if cb, err := rec.Control(); err == nil {
		resp["control"] = cb
	} else {
		resp["control_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// editRequest is the JSON body of the admin edit endpoints. Name is the field
// name for /fields and the control block key for /meta.
type editRequest struct {
	Method string `json:"method"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// handleEditField handles PATCH /v1/decisions/{id}/fields.
func (s *HazelServer) handleEditField(w http.ResponseWriter, r *http.Request) {
	s.handleEdit(w, r, s.outcome.EditField)
}

// handleEditControl handles PATCH /v1/decisions/{id}/meta.
func (s *HazelServer) handleEditControl(w http.ResponseWriter, r *http.Request) {
	s.handleEdit(w, r, s.outcome.EditControl)
}

type editFunc func(ctx context.Context, id string, method outcome.Method, name, value string) (*model.Record, error)

func (s *HazelServer) handleEdit(w http.ResponseWriter, r *http.Request, edit editFunc) {
	var req editRequest
	if !decodeBody(w, r, &req) {
		return
	}
	method, err := outcome.ParseMethod(req.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := edit(r.Context(), r.PathValue("id"), method, req.Name, req.Value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListFollowUps handles GET /v1/followups: decisions with a pending
// follow-up in the history window, plus the drain queue as it stands.
func (s *HazelServer) handleListFollowUps(w http.ResponseWriter, r *http.Request) {
	recs, err := s.outcome.PendingFollowUps(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*model.Record{}
	}
	queued := []lifecycle.Entry{}
	if s.queue != nil {
		queued = append(queued, s.queue.Snapshot()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": recs, "queued": queued})
}
