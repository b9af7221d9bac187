package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
	"github.com/alfredjeanlab/hazel/internal/store/memory"
	"github.com/alfredjeanlab/hazel/internal/transform"
)

const decisionChannel = "decisions"

var errBoom = errors.New("boom")

// countingStore wraps the memory store and records writes.
type countingStore struct {
	*memory.Store

	mu        sync.Mutex
	replaces  []string
	failWrite bool
}

func (s *countingStore) ReplaceFields(ctx context.Context, id string, fields []model.Field) error {
	s.mu.Lock()
	s.replaces = append(s.replaces, id)
	fail := s.failWrite
	s.mu.Unlock()
	if fail {
		return errBoom
	}
	return s.Store.ReplaceFields(ctx, id, fields)
}

func (s *countingStore) replaceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replaces)
}

var _ store.Store = (*countingStore)(nil)

// scriptedTransformer returns canned results and counts calls.
type scriptedTransformer struct {
	mu sync.Mutex

	normalize   func(fields []model.Field) (*transform.NormalizedResult, error)
	align       *transform.AlignmentResult
	alignErr    error
	onAlign     func()
	normCalls   int
	alignCalls  int
	gotVision   string
	gotHandbook string
	block       chan struct{}
}

func (t *scriptedTransformer) Normalize(_ context.Context, fields []model.Field) (*transform.NormalizedResult, error) {
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	t.normCalls++
	t.mu.Unlock()
	if t.normalize == nil {
		return &transform.NormalizedResult{Fields: fields}, nil
	}
	return t.normalize(fields)
}

func (t *scriptedTransformer) Align(_ context.Context, _ []model.Field, vision, handbook string) (*transform.AlignmentResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alignCalls++
	t.gotVision, t.gotHandbook = vision, handbook
	if t.onAlign != nil {
		t.onAlign()
	}
	if t.alignErr != nil {
		return nil, t.alignErr
	}
	if t.align == nil {
		return &transform.AlignmentResult{}, nil
	}
	return t.align, nil
}

func (t *scriptedTransformer) Ask(context.Context, string, string) (string, error) {
	return "", transform.ErrDisabled
}

type staticArchive map[string]string

func (a staticArchive) Read(_ context.Context, channelID string) (string, error) {
	return a[channelID], nil
}

// recordingPresenter records every post.
type recordingPresenter struct {
	mu         sync.Mutex
	followUps  []string
	objections []string
	err        error
	// onFollowUp runs before the follow-up is recorded.
	onFollowUp func(decision *model.Record)
}

func (p *recordingPresenter) PostFollowUp(_ context.Context, decision *model.Record, backlog string) (*model.Record, error) {
	if p.onFollowUp != nil {
		p.onFollowUp(decision)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.followUps = append(p.followUps, decision.ID+"@"+backlog)
	return &model.Record{ID: "post-" + decision.ID}, nil
}

func (p *recordingPresenter) PostObjection(_ context.Context, decision *model.Record, revision string) (*model.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.objections = append(p.objections, decision.ID+":"+revision)
	return &model.Record{ID: "post-" + decision.ID}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type harness struct {
	store     *countingStore
	transform *scriptedTransformer
	presenter *recordingPresenter
	clock     *clock
	engine    *Engine
}

var testStart = time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, leadTime time.Duration) *harness {
	t.Helper()
	h := &harness{
		store:     &countingStore{Store: memory.New()},
		transform: &scriptedTransformer{},
		presenter: &recordingPresenter{},
		clock:     &clock{now: testStart},
	}
	h.engine = New(Config{
		DecisionChannelID: decisionChannel,
		VisionChannelID:   "vision",
		HandbookChannelID: "handbook",
		HistoryWindow:     7 * 24 * time.Hour,
		LeadTime:          leadTime,
		PageSize:          2,
	}, h.store, h.transform, staticArchive{"vision": "V", "handbook": "H"}, h.presenter,
		WithClock(h.clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return h
}

// addDecision stores a decision with the given control block and returns its id.
func (h *harness) addDecision(t *testing.T, id, meta string, age time.Duration, extra ...model.Field) string {
	t.Helper()
	fields := []model.Field{
		{Name: model.FieldCircle, Value: "economy"},
		{Name: model.FieldOriginalTitle, Value: "Cykelskur"},
		{Name: model.FieldOutcome, Value: "Vi bygger et skur"},
	}
	fields = append(fields, extra...)
	fields = append(fields, model.Field{Name: model.MetaFieldName, Value: meta})
	rec := &model.Record{
		ID:        id,
		ChannelID: decisionChannel,
		CreatedAt: testStart.Add(-age),
		Fields:    fields,
	}
	require.NoError(t, h.store.CreateRecord(context.Background(), rec))
	return id
}

func (h *harness) control(t *testing.T, id string) *model.ControlBlock {
	t.Helper()
	rec, err := h.store.GetRecord(context.Background(), id)
	require.NoError(t, err)
	cb, err := rec.Control()
	require.NoError(t, err)
	return cb
}

func (h *harness) fields(t *testing.T, id string) []model.Field {
	t.Helper()
	rec, err := h.store.GetRecord(context.Background(), id)
	require.NoError(t, err)
	return rec.Fields
}
