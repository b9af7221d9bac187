// Package present renders lane outcomes and agenda items as records and
// posts them through the record store.
package present

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/hazel/internal/idgen"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
)

const (
	BacklogTitle   = "Nyt punkt til husmøde"
	FollowUpTitle  = "Opfølgningspunkt til husmøde"
	ObjectionTitle = "Kommentar fra Hasselmusen"

	// NoComment is posted when an objection carries no suggested revision.
	NoComment = "Ingen kommentar"

	// BotAuthor is credited on a follow-up whose decision has no author.
	BotAuthor = "Kunja Hasselmus"

	// ObjectionColor is red.
	ObjectionColor = 0xff0000
)

// Presenter posts rendered records into channels.
type Presenter struct {
	store   store.Store
	circles model.Circles
	now     func() time.Time
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithClock overrides the clock used for the "Dato" field.
func WithClock(now func() time.Time) Option {
	return func(p *Presenter) { p.now = now }
}

// New creates a Presenter writing to s.
func New(s store.Store, circles model.Circles, opts ...Option) *Presenter {
	p := &Presenter{store: s, circles: circles, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BacklogItem is the content of a new agenda item.
type BacklogItem struct {
	Circle      *model.Circle
	Author      string
	AgendaType  string
	Title       string
	Description string
}

// RenderBacklogItem builds the record of a new agenda item.
func (p *Presenter) RenderBacklogItem(item BacklogItem) *model.Record {
	agendaType := item.AgendaType
	if agendaType == "" {
		agendaType = model.DefaultAgendaType
	}
	return &model.Record{
		ChannelID: item.Circle.BacklogChannelID,
		Title:     BacklogTitle,
		Color:     item.Circle.DisplayColor(),
		Fields: []model.Field{
			{Name: model.FieldCircle, Value: item.Circle.Name, Inline: true},
			{Name: model.FieldAuthor, Value: item.Author, Inline: true},
			{Name: model.FieldAgendaType, Value: agendaType, Inline: true},
			{Name: model.FieldHeadline, Value: item.Title, Inline: true},
			{Name: model.FieldDate, Value: p.today(), Inline: true},
			{Name: model.FieldDescription, Value: item.Description},
		},
	}
}

// PostBacklogItem renders and stores a new agenda item.
func (p *Presenter) PostBacklogItem(ctx context.Context, item BacklogItem) (*model.Record, error) {
	rec := p.RenderBacklogItem(item)
	if err := p.post(ctx, rec, idgen.Backlog); err != nil {
		return nil, fmt.Errorf("post backlog item: %w", err)
	}
	return rec, nil
}

// RenderFollowUp builds the agenda item that brings a decision back to a
// meeting. Missing values fall back to the placeholder, the default agenda
// type or the bot as author.
func (p *Presenter) RenderFollowUp(decision *model.Record, backlogChannelID string) *model.Record {
	circleName := decision.FieldOr(model.FieldCircle, model.Placeholder)
	return &model.Record{
		ChannelID: backlogChannelID,
		Title:     FollowUpTitle,
		Color:     p.circleFor(circleName, backlogChannelID).DisplayColor(),
		Fields: []model.Field{
			{Name: model.FieldCircle, Value: circleName, Inline: true},
			{Name: model.FieldAuthor, Value: decision.FieldOr(model.FieldAuthor, BotAuthor), Inline: true},
			{Name: model.FieldAgendaType, Value: decision.FieldOr(model.FieldAgendaType, model.DefaultAgendaType), Inline: true},
			{Name: model.FieldHeadline, Value: decision.FieldOr(model.FieldOriginalTitle, model.Placeholder)},
			{Name: model.FieldDescription, Value: decision.FieldOr(model.FieldOriginalDescription, model.Placeholder)},
			{Name: model.FieldLastOutcome, Value: decision.FieldOr(model.FieldOutcome, model.Placeholder)},
		},
	}
}

// PostFollowUp renders and stores the follow-up agenda item for decision.
func (p *Presenter) PostFollowUp(ctx context.Context, decision *model.Record, backlogChannelID string) (*model.Record, error) {
	if backlogChannelID == "" {
		return nil, fmt.Errorf("post follow-up for %s: no backlog channel", decision.ID)
	}
	rec := p.RenderFollowUp(decision, backlogChannelID)
	if err := p.post(ctx, rec, idgen.Backlog); err != nil {
		return nil, fmt.Errorf("post follow-up for %s: %w", decision.ID, err)
	}
	return rec, nil
}

// ThreadName is the name of the discussion thread opened on a decision.
func ThreadName(decision *model.Record) string {
	return "Kommentar: " + decision.FieldOr(model.FieldOriginalTitle, decision.ID)
}

// RenderObjection builds the post that explains an objection. It is filed
// under the decision's thread channel and names the thread it opens.
func (p *Presenter) RenderObjection(decision *model.Record, revision string) *model.Record {
	if revision == "" {
		revision = NoComment
	}
	return &model.Record{
		ChannelID: model.ThreadChannelID(decision.ID),
		Title:     ObjectionTitle,
		Color:     ObjectionColor,
		Fields: []model.Field{
			{Name: model.FieldComment, Value: revision},
			{Name: model.FieldDecisionID, Value: decision.ID, Inline: true},
			{Name: model.FieldCircle, Value: decision.FieldOr(model.FieldCircle, ""), Inline: true},
			{Name: model.FieldThread, Value: ThreadName(decision)},
		},
	}
}

// PostObjection posts the objection into the decision's discussion thread.
func (p *Presenter) PostObjection(ctx context.Context, decision *model.Record, revision string) (*model.Record, error) {
	rec := p.RenderObjection(decision, revision)
	if err := p.post(ctx, rec, idgen.Post); err != nil {
		return nil, fmt.Errorf("post objection on %s: %w", decision.ID, err)
	}
	return rec, nil
}

func (p *Presenter) post(ctx context.Context, rec *model.Record, kind idgen.Kind) error {
	id, err := idgen.New(kind)
	if err != nil {
		return err
	}
	rec.ID = id
	rec.CreatedAt = p.now().UTC()
	return p.store.CreateRecord(ctx, rec)
}

func (p *Presenter) circleFor(name, backlogChannelID string) *model.Circle {
	if c, ok := p.circles[name]; ok {
		return c
	}
	if c, ok := p.circles.ByBacklogChannel(backlogChannelID); ok {
		return c
	}
	return nil
}

func (p *Presenter) today() string {
	return p.now().Format(model.DateLayout)
}
