// Package outcome is the member-facing side of the decision lifecycle: it
// files agenda items, opens meetings, records meeting outcomes as decision
// records and applies admin edits to them.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/alfredjeanlab/hazel/internal/archive"
	"github.com/alfredjeanlab/hazel/internal/events"
	"github.com/alfredjeanlab/hazel/internal/idgen"
	"github.com/alfredjeanlab/hazel/internal/meeting"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/present"
	"github.com/alfredjeanlab/hazel/internal/store"
	"github.com/alfredjeanlab/hazel/internal/transform"
)

var (
	// ErrNoMeeting is returned when an outcome is recorded for a circle
	// without a live meeting.
	ErrNoMeeting     = errors.New("no active meeting for circle")
	ErrUnknownCircle = errors.New("unknown circle")
	// ErrReadOnly is returned when the caller holds none of the circle's writer roles.
	ErrReadOnly = errors.New("circle is read-only for caller")
	ErrInvalid  = errors.New("invalid request")
)

// Placeholder is written for headline and description when the agenda item lacks them.
const Placeholder = model.Placeholder

const (
	minTitleLen       = 5
	minDescriptionLen = 10
	maxDescriptionLen = 1500
)

// BacklogPoster posts new agenda items.
type BacklogPoster interface {
	PostBacklogItem(ctx context.Context, item present.BacklogItem) (*model.Record, error)
}

// ArchiveEntries returns the rendered entries of a reference channel.
type ArchiveEntries interface {
	Entries(ctx context.Context, channelID string) ([]string, error)
}

// Config holds the service settings.
type Config struct {
	DecisionChannelID string
	VisionChannelID   string
	HandbookChannelID string
	HistoryWindow     time.Duration
	MeetingDuration   time.Duration
	PageSize          int
}

// Service records outcomes and manages agenda items.
type Service struct {
	cfg       Config
	store     store.Store
	meetings  *meeting.Store
	circles   model.Circles
	backlog   BacklogPoster
	transform transform.Transformer
	archive   ArchiveEntries
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAsk enables Ask, answering from the vision and handbook archives.
func WithAsk(t transform.Transformer, a ArchiveEntries) Option {
	return func(s *Service) {
		s.transform = t
		s.archive = a
	}
}

// New creates a Service.
func New(cfg Config, st store.Store, meetings *meeting.Store, circles model.Circles, backlog BacklogPoster, opts ...Option) *Service {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 7 * 24 * time.Hour
	}
	if cfg.MeetingDuration <= 0 {
		cfg.MeetingDuration = meeting.DefaultDuration
	}
	s := &Service{
		cfg:       cfg,
		store:     st,
		meetings:  meetings,
		circles:   circles,
		backlog:   backlog,
		transform: transform.Disabled{},
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Circles returns the routing table.
func (s *Service) Circles() model.Circles { return s.circles }

// Mention renders a member id the way the chat platform links members.
func Mention(id string) string {
	return "<@" + id + ">"
}

func (s *Service) circle(name string) (*model.Circle, error) {
	c, ok := s.circles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCircle, name)
	}
	return c, nil
}

// BacklogRequest is a new agenda item filed by a member.
type BacklogRequest struct {
	Circle      string   `json:"circle"`
	Author      string   `json:"author"`
	Roles       []string `json:"roles"`
	AgendaType  string   `json:"agenda_type,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

func (r *BacklogRequest) validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Title)) < minTitleLen {
		return fmt.Errorf("%w: title must be at least %d characters", ErrInvalid, minTitleLen)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(r.Description))
	if n < minDescriptionLen || n > maxDescriptionLen {
		return fmt.Errorf("%w: description must be %d-%d characters", ErrInvalid, minDescriptionLen, maxDescriptionLen)
	}
	return nil
}

// NewBacklogItem posts an agenda item into the circle's backlog channel.
func (s *Service) NewBacklogItem(ctx context.Context, req BacklogRequest) (*model.Record, error) {
	c, err := s.circle(req.Circle)
	if err != nil {
		return nil, err
	}
	if !c.CanWrite(req.Roles) {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, c.Name)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	rec, err := s.backlog.PostBacklogItem(ctx, present.BacklogItem{
		Circle:      c,
		Author:      Mention(req.Author),
		AgendaType:  strings.TrimSpace(req.AgendaType),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("backlog item created", "record_id", rec.ID, "circle", c.Name)
	s.publish(ctx, events.TopicBacklogCreated, events.BacklogCreated{Record: rec, Circle: c.Name})
	return rec, nil
}

// StartMeeting opens or replaces the circle's meeting session.
func (s *Service) StartMeeting(ctx context.Context, circle string, participants []string) (*meeting.Session, error) {
	c, err := s.circle(circle)
	if err != nil {
		return nil, err
	}
	if !hasParticipant(participants) {
		return nil, fmt.Errorf("%w: a meeting needs participants", ErrInvalid)
	}
	sess := s.meetings.Set(c.Name, participants, s.cfg.MeetingDuration)
	s.logger.Info("meeting started", "circle", c.Name, "participants", len(sess.Participants), "expires_at", sess.ExpiresAt)
	s.publish(ctx, events.TopicMeetingStarted, events.MeetingStarted{Session: sess})
	return sess, nil
}

// Meeting returns the circle's live meeting session.
func (s *Service) Meeting(circle string) (*meeting.Session, error) {
	c, err := s.circle(circle)
	if err != nil {
		return nil, err
	}
	sess, ok := s.meetings.Get(c.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMeeting, c.Name)
	}
	return sess, nil
}

// OutcomeRequest records what a meeting decided about an agenda item.
type OutcomeRequest struct {
	BacklogItemID string `json:"backlog_item_id"`
	Author        string `json:"author"`
	Outcome       string `json:"outcome"`
	AgendaType    string `json:"agenda_type,omitempty"`
	Responsible   string `json:"responsible,omitempty"`
	// FollowUpDate is free text; an ISO date arms the follow-up lane
	// directly, anything else is left for normalization.
	FollowUpDate string `json:"follow_up_date,omitempty"`
	Assist       bool   `json:"assist"`
	Alignment    bool   `json:"alignment"`
}

// RecordOutcome turns a backlog item into a decision record. The circle is
// the owner of the item's backlog channel and must have a live meeting.
func (s *Service) RecordOutcome(ctx context.Context, req OutcomeRequest) (*model.Record, error) {
	if strings.TrimSpace(req.Outcome) == "" {
		return nil, fmt.Errorf("%w: outcome is required", ErrInvalid)
	}
	item, err := s.store.GetRecord(ctx, req.BacklogItemID)
	if err != nil {
		return nil, fmt.Errorf("get backlog item %s: %w", req.BacklogItemID, err)
	}
	c, ok := s.circles.ByBacklogChannel(item.ChannelID)
	if !ok {
		return nil, fmt.Errorf("%w: no circle owns channel %s", ErrUnknownCircle, item.ChannelID)
	}
	sess, ok := s.meetings.Get(c.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMeeting, c.Name)
	}

	agendaType := strings.TrimSpace(req.AgendaType)
	if agendaType == "" {
		agendaType = item.FieldOr(model.FieldAgendaType, model.DefaultAgendaType)
	}
	mentions := make([]string, len(sess.Participants))
	for i, id := range sess.Participants {
		mentions[i] = Mention(id)
	}

	fields := []model.Field{
		{Name: model.FieldCircle, Value: c.Name, Inline: true},
		{Name: model.FieldAuthor, Value: Mention(req.Author), Inline: true},
		{Name: model.FieldAgendaType, Value: agendaType, Inline: true},
		{Name: model.FieldOriginalTitle, Value: item.FieldOr(model.FieldHeadline, Placeholder)},
		{Name: model.FieldOriginalDescription, Value: item.FieldOr(model.FieldDescription, Placeholder)},
		{Name: model.FieldOutcome, Value: strings.TrimSpace(req.Outcome)},
		{Name: model.FieldParticipants, Value: strings.Join(mentions, ", ")},
	}
	cb := model.NewControlBlock(c.BacklogChannelID, req.Assist, req.Alignment)
	if date := strings.TrimSpace(req.FollowUpDate); date != "" {
		fields = append(fields, model.Field{Name: model.FieldNextActionDate, Value: date, Inline: true})
		if model.IsISODate(date) {
			cb.ArmFollowUp(date)
		}
	}
	if r := strings.TrimSpace(req.Responsible); r != "" {
		fields = append(fields, model.Field{Name: model.FieldResponsible, Value: r, Inline: true})
	}
	fields, err = model.WithControl(fields, cb)
	if err != nil {
		return nil, fmt.Errorf("encode control block: %w", err)
	}

	id, err := idgen.New(idgen.Decision)
	if err != nil {
		return nil, err
	}
	rec := &model.Record{
		ID:        id,
		ChannelID: s.cfg.DecisionChannelID,
		Title:     capitalize(agendaType),
		Color:     c.DisplayColor(),
		CreatedAt: s.now().UTC(),
		Fields:    fields,
	}
	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("create decision: %w", err)
	}
	s.logger.Info("decision recorded", "record_id", rec.ID, "circle", c.Name, "backlog_item", item.ID)

	if err := s.store.DeleteRecord(ctx, item.ID); err != nil {
		s.logger.Warn("failed to delete backlog item", "record_id", item.ID, "err", err)
	}
	s.publish(ctx, events.TopicDecisionRecorded, events.DecisionRecorded{Record: rec, Circle: c.Name})
	return rec, nil
}

// PendingFollowUps lists the decisions in the history window whose
// follow-up has not been handled, newest first.
func (s *Service) PendingFollowUps(ctx context.Context) ([]*model.Record, error) {
	since := s.now().Add(-s.cfg.HistoryWindow)
	recs, err := store.ScanSince(ctx, s.store, s.cfg.DecisionChannelID, since, s.cfg.PageSize)
	if err != nil {
		return nil, err
	}
	var out []*model.Record
	for _, rec := range recs {
		cb, err := rec.Control()
		if err != nil {
			continue
		}
		if cb.FollowUpPending() {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Decision returns one decision record.
func (s *Service) Decision(ctx context.Context, id string) (*model.Record, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get decision %s: %w", id, err)
	}
	return rec, nil
}

// Ask answers a member question from the vision and handbook archives.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is required", ErrInvalid)
	}
	if s.archive == nil {
		return "", transform.ErrDisabled
	}
	var entries []string
	for _, ch := range []string{s.cfg.VisionChannelID, s.cfg.HandbookChannelID} {
		e, err := s.archive.Entries(ctx, ch)
		if err != nil {
			return "", fmt.Errorf("read archive %s: %w", ch, err)
		}
		entries = append(entries, e...)
	}
	return s.transform.Ask(ctx, question, strings.Join(entries, archive.Separator))
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}

func hasParticipant(ids []string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
