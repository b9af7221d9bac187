package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/meeting"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/outcome"
	"github.com/alfredjeanlab/hazel/internal/present"
	"github.com/alfredjeanlab/hazel/internal/store/memory"
)

// fakeLanes is a LaneRunner that returns a canned report or error.
type fakeLanes struct {
	err  error
	runs []lifecycle.Lane
}

func (f *fakeLanes) RunOnce(_ context.Context, lane lifecycle.Lane) (*lifecycle.Report, error) {
	f.runs = append(f.runs, lane)
	if f.err != nil {
		return nil, f.err
	}
	return &lifecycle.Report{Lane: lane, Scanned: 3, Matched: 1, Processed: 1}, nil
}

func (f *fakeLanes) Status() []lifecycle.LaneStatus {
	return []lifecycle.LaneStatus{{Lane: lifecycle.LaneNormalize, Enabled: true, Interval: time.Minute}}
}

type testEnv struct {
	handler http.Handler
	store   *memory.Store
	lanes   *fakeLanes
	queue   *lifecycle.Queue
}

func newTestServer(t *testing.T, token string) *testEnv {
	t.Helper()
	st := memory.New()
	circles := model.Circles{
		"economy": {Name: "economy", BacklogChannelID: "backlog-eco", WriterRoleIDs: []string{"writer"}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := outcome.New(outcome.Config{DecisionChannelID: "decisions"}, st, meeting.NewStore(), circles,
		present.New(st, circles), outcome.WithLogger(logger))
	lanes := &fakeLanes{}
	queue := lifecycle.NewQueue()
	srv := NewHazelServer(svc, lanes, queue, NewLaneHealth(allLanes), logger)
	return &testEnv{handler: srv.NewHTTPHandler(token), store: st, lanes: lanes, queue: queue}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rec.Body.String())
	}
	return v
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d; body: %s", want, rec.Code, rec.Body.String())
	}
}

func (e *testEnv) createBacklogItem(t *testing.T) *model.Record {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/circles/economy/backlog", map[string]any{
		"author":      "u1",
		"roles":       []string{"writer"},
		"title":       "Nye cykelstativer",
		"description": "Vi mangler plads til cykler ved opgang B.",
	})
	requireStatus(t, rec, http.StatusCreated)
	return decode[*model.Record](t, rec)
}

func TestHTTP_Health(t *testing.T) {
	env := newTestServer(t, "secret")
	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	requireStatus(t, rec, http.StatusOK)
}

func TestHTTP_AuthRequired(t *testing.T) {
	env := newTestServer(t, "secret")
	rec := env.do(t, http.MethodGet, "/v1/circles", nil)
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestHTTP_ListCircles(t *testing.T) {
	env := newTestServer(t, "")
	rec := env.do(t, http.MethodGet, "/v1/circles", nil)
	requireStatus(t, rec, http.StatusOK)

	got := decode[struct {
		Circles []model.Circle `json:"circles"`
	}](t, rec)
	if len(got.Circles) != 1 || got.Circles[0].Name != "economy" {
		t.Fatalf("circles = %+v", got.Circles)
	}
}

func TestHTTP_BacklogItem(t *testing.T) {
	env := newTestServer(t, "")
	item := env.createBacklogItem(t)
	if item.ChannelID != "backlog-eco" {
		t.Errorf("channel = %q", item.ChannelID)
	}

	for _, tc := range []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{"UnknownCircle", "/v1/circles/ghost/backlog", map[string]any{"roles": []string{"writer"}}, http.StatusNotFound},
		{"ReadOnly", "/v1/circles/economy/backlog", map[string]any{"roles": []string{"guest"}}, http.StatusForbidden},
		{"Invalid", "/v1/circles/economy/backlog", map[string]any{"roles": []string{"writer"}, "title": "x"}, http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			requireStatus(t, env.do(t, http.MethodPost, tc.path, tc.body), tc.want)
		})
	}
}

func TestHTTP_InvalidJSON(t *testing.T) {
	env := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestHTTP_MeetingAndOutcome(t *testing.T) {
	env := newTestServer(t, "")
	item := env.createBacklogItem(t)

	requireStatus(t, env.do(t, http.MethodGet, "/v1/circles/economy/meeting", nil), http.StatusNotFound)

	outcomeReq := map[string]any{
		"backlog_item_id": item.ID,
		"author":          "u2",
		"outcome":         "Vedtaget",
		"follow_up_date":  "2025-09-01",
		"assist":          true,
	}
	requireStatus(t, env.do(t, http.MethodPost, "/v1/decisions", outcomeReq), http.StatusConflict)

	rec := env.do(t, http.MethodPut, "/v1/circles/economy/meeting", map[string]any{"participants": []string{"u2", "u1"}})
	requireStatus(t, rec, http.StatusOK)
	sess := decode[meeting.Session](t, rec)
	if len(sess.Participants) != 2 {
		t.Fatalf("participants = %v", sess.Participants)
	}
	requireStatus(t, env.do(t, http.MethodGet, "/v1/circles/economy/meeting", nil), http.StatusOK)

	rec = env.do(t, http.MethodPost, "/v1/decisions", outcomeReq)
	requireStatus(t, rec, http.StatusCreated)
	decision := decode[*model.Record](t, rec)

	rec = env.do(t, http.MethodGet, "/v1/decisions/"+decision.ID, nil)
	requireStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Record  model.Record       `json:"record"`
		Control model.ControlBlock `json:"control"`
	}](t, rec)
	if got.Record.ID != decision.ID || !bool(got.Control.PostProcess) || got.Control.NextActionDate != "2025-09-01" {
		t.Fatalf("decision = %+v", got)
	}

	requireStatus(t, env.do(t, http.MethodGet, "/v1/decisions/missing", nil), http.StatusNotFound)
}

func seedDecision(t *testing.T, env *testEnv, meta string) {
	t.Helper()
	err := env.store.CreateRecord(context.Background(), &model.Record{
		ID:        "dec-1",
		ChannelID: "decisions",
		CreatedAt: time.Now().UTC(),
		Fields: []model.Field{
			{Name: model.FieldOutcome, Value: "Vedtaget"},
			{Name: model.MetaFieldName, Value: meta},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
}

func TestHTTP_EditField(t *testing.T) {
	env := newTestServer(t, "")
	seedDecision(t, env, `{"post_process":false}`)

	rec := env.do(t, http.MethodPatch, "/v1/decisions/dec-1/fields", editRequest{Method: "insert", Name: model.FieldResponsible, Value: "Ida"})
	requireStatus(t, rec, http.StatusOK)
	if v := decode[*model.Record](t, rec).FieldOr(model.FieldResponsible, ""); v != "Ida" {
		t.Errorf("Ansvarlig = %q", v)
	}

	rec = env.do(t, http.MethodPatch, "/v1/decisions/dec-1/fields", editRequest{Method: "upsert", Name: "x"})
	requireStatus(t, rec, http.StatusBadRequest)
	rec = env.do(t, http.MethodPatch, "/v1/decisions/missing/fields", editRequest{Method: "update", Name: "x"})
	requireStatus(t, rec, http.StatusNotFound)
}

func TestHTTP_EditControl(t *testing.T) {
	env := newTestServer(t, "")
	seedDecision(t, env, `{"post_process":false}`)

	rec := env.do(t, http.MethodPatch, "/v1/decisions/dec-1/meta", editRequest{Method: "update", Name: "post_process", Value: "true"})
	requireStatus(t, rec, http.StatusOK)
	cb, err := decode[*model.Record](t, rec).Control()
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if !cb.NormalizationPending() {
		t.Error("expected normalization re-armed")
	}
}

func TestHTTP_EditControl_Malformed(t *testing.T) {
	env := newTestServer(t, "")
	seedDecision(t, env, `{oops`)

	rec := env.do(t, http.MethodPatch, "/v1/decisions/dec-1/meta", editRequest{Method: "update", Name: "post_process", Value: "true"})
	requireStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestHTTP_FollowUps(t *testing.T) {
	env := newTestServer(t, "")
	seedDecision(t, env, `{"next_action_date":"2025-09-01","next_action_date_handled":false}`)
	env.queue.Add(lifecycle.Entry{RecordID: "dec-1", BacklogChannelID: "b"})

	rec := env.do(t, http.MethodGet, "/v1/followups", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Pending []model.Record    `json:"pending"`
		Queued  []lifecycle.Entry `json:"queued"`
	}](t, rec)
	if len(got.Pending) != 1 || got.Pending[0].ID != "dec-1" {
		t.Errorf("pending = %+v", got.Pending)
	}
	if len(got.Queued) != 1 || got.Queued[0].RecordID != "dec-1" {
		t.Errorf("queued = %+v", got.Queued)
	}
}

func TestHTTP_Lanes(t *testing.T) {
	env := newTestServer(t, "")

	rec := env.do(t, http.MethodGet, "/v1/lanes", nil)
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPost, "/v1/lanes/normalize/run", nil)
	requireStatus(t, rec, http.StatusOK)
	if r := decode[lifecycle.Report](t, rec); r.Processed != 1 {
		t.Errorf("report = %+v", r)
	}

	for _, tc := range []struct {
		err  error
		want int
	}{
		{lifecycle.ErrLaneBusy, http.StatusConflict},
		{fmt.Errorf("%w: %q", lifecycle.ErrLaneDisabled, "align"), http.StatusConflict},
		{lifecycle.ErrUnknownLane, http.StatusNotFound},
	} {
		env.lanes.err = tc.err
		requireStatus(t, env.do(t, http.MethodPost, "/v1/lanes/align/run", nil), tc.want)
	}
}

func TestHTTP_AskDisabled(t *testing.T) {
	env := newTestServer(t, "")
	requireStatus(t, env.do(t, http.MethodPost, "/v1/ask", askRequest{Question: "hej"}), http.StatusServiceUnavailable)
	requireStatus(t, env.do(t, http.MethodPost, "/v1/ask", askRequest{Question: " "}), http.StatusBadRequest)
}
