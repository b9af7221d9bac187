// Package lifecycle runs the three decision lanes.
//
// Every decision record carries a control block. Each lane scans the
// decision channel over the history window, selects the records whose
// control block says the lane is pending, and drives them to a terminal
// state:
//
//   - normalization rewrites the fields once through the text transform,
//   - alignment checks the decision against the vision and handbook once,
//   - follow-up enqueues records with a follow-up date and, when the date
//     comes due, marks them handled before posting a new agenda item.
//
// Lanes are independent. Two lanes may write the same record concurrently;
// the record store has no version check, so the last writer wins.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfredjeanlab/hazel/internal/events"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
	"github.com/alfredjeanlab/hazel/internal/transform"
)

// DefaultActor is recorded as the author of objections.
const DefaultActor = "hazel"

// DefaultHistoryWindow bounds every lane scan.
const DefaultHistoryWindow = 7 * 24 * time.Hour

// Presenter renders lane outcomes for members.
type Presenter interface {
	PostFollowUp(ctx context.Context, decision *model.Record, backlogChannelID string) (*model.Record, error)
	PostObjection(ctx context.Context, decision *model.Record, revision string) (*model.Record, error)
}

// ArchiveReader builds the reference text of a channel.
type ArchiveReader interface {
	Read(ctx context.Context, channelID string) (string, error)
}

// Config holds the engine settings.
type Config struct {
	DecisionChannelID string
	VisionChannelID   string
	HandbookChannelID string

	// HistoryWindow limits scans to records created within it.
	HistoryWindow time.Duration
	// LeadTime moves the follow-up earlier than its date.
	LeadTime time.Duration
	PageSize int
	// Location interprets plain follow-up dates.
	Location *time.Location
	Actor    string
}

// Engine owns the lane processors and the follow-up queue.
type Engine struct {
	cfg       Config
	store     store.Store
	transform transform.Transformer
	archive   ArchiveReader
	presenter Presenter
	publisher events.Publisher
	queue     *Queue
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the engine's clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithQueue shares an existing follow-up queue.
func WithQueue(q *Queue) Option {
	return func(e *Engine) { e.queue = q }
}

// New creates an Engine.
func New(cfg Config, s store.Store, t transform.Transformer, a ArchiveReader, p Presenter, opts ...Option) *Engine {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = store.DefaultPageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Actor == "" {
		cfg.Actor = DefaultActor
	}
	e := &Engine{
		cfg:       cfg,
		store:     s,
		transform: t,
		archive:   a,
		presenter: p,
		publisher: &events.NoopPublisher{},
		queue:     NewQueue(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/alfredjeanlab/hazel/internal/lifecycle"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Queue returns the follow-up queue.
func (e *Engine) Queue() *Queue { return e.queue }

// Report summarizes one lane tick.
type Report struct {
	Lane      Lane `json:"lane"`
	Scanned   int  `json:"scanned"`
	Matched   int  `json:"matched"`
	Processed int  `json:"processed"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
}

// step is what happened to one candidate during a tick.
type step int

const (
	stepDone     step = iota // terminal state written
	stepRetry                // write failed; the record stays pending
	stepDeferred             // not attempted; the record stays pending
)

func (r *Report) count(s step) {
	switch s {
	case stepDone:
		r.Processed++
	case stepRetry:
		r.Failed++
	case stepDeferred:
		r.Skipped++
	}
}

// deferred reports whether a failed transform call says nothing about the
// record itself: the tick was cancelled, or no provider is configured.
// Such records are left pending instead of being marked failed.
func deferred(ctx context.Context, callErr error) bool {
	return ctx.Err() != nil || errors.Is(callErr, transform.ErrDisabled)
}

// candidate is a scanned record with its parsed control block.
type candidate struct {
	rec *model.Record
	cb  *model.ControlBlock
}

// scan returns the decisions in the history window whose control block
// satisfies pending, newest first. Malformed control blocks are logged and
// counted as skipped.
func (e *Engine) scan(ctx context.Context, r *Report, pending func(*model.ControlBlock) bool) ([]candidate, error) {
	since := e.now().Add(-e.cfg.HistoryWindow)
	recs, err := store.ScanSince(ctx, e.store, e.cfg.DecisionChannelID, since, e.cfg.PageSize)
	if err != nil {
		return nil, err
	}
	r.Scanned = len(recs)

	var out []candidate
	for _, rec := range recs {
		cb, err := rec.Control()
		if errors.Is(err, model.ErrNoControlBlock) {
			continue
		}
		var cbe *model.ControlBlockError
		if errors.As(err, &cbe) {
			r.Skipped++
			e.logger.Warn("skipping record with malformed control block",
				"lane", r.Lane, "record_id", rec.ID, "raw", cbe.Raw, "err", cbe.Err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if pending(cb) {
			out = append(out, candidate{rec: rec, cb: cb})
		}
	}
	r.Matched = len(out)
	return out, nil
}

// writeControl replaces the record's fields with fields plus cb.
func (e *Engine) writeControl(ctx context.Context, id string, fields []model.Field, cb *model.ControlBlock) error {
	out, err := model.WithControl(fields, cb)
	if err != nil {
		return err
	}
	if err := e.store.ReplaceFields(ctx, id, out); err != nil {
		return fmt.Errorf("write record %s: %w", id, err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, topic string, event any) {
	if err := e.publisher.Publish(ctx, topic, event); err != nil {
		e.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}

// startTick opens the span for one lane tick.
func (e *Engine) startTick(ctx context.Context, lane Lane) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "lifecycle."+string(lane),
		trace.WithAttributes(attribute.String("hazel.lane", string(lane))))
}

func endTick(span trace.Span, r *Report, err error) {
	span.SetAttributes(
		attribute.Int("hazel.scanned", r.Scanned),
		attribute.Int("hazel.matched", r.Matched),
		attribute.Int("hazel.processed", r.Processed),
		attribute.Int("hazel.failed", r.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
