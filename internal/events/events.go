package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/hazel/internal/meeting"
	"github.com/alfredjeanlab/hazel/internal/model"
)

// Event topic constants
const (
	TopicDecisionRecorded   = "hazel.decision.recorded"
	TopicDecisionNormalized = "hazel.decision.normalized"
	TopicDecisionAligned    = "hazel.decision.aligned"
	TopicDecisionObjection  = "hazel.decision.objection"

	TopicFollowUpQueued = "hazel.followup.queued"
	TopicFollowUpPosted = "hazel.followup.posted"

	TopicBacklogCreated = "hazel.backlog.created"
	TopicMeetingStarted = "hazel.meeting.started"
)

// AllTopics matches every hazel event.
const AllTopics = "hazel.>"

// Envelope wraps every published event.
type Envelope struct {
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	Time  time.Time       `json:"time"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope encodes event under a fresh id.
func NewEnvelope(topic string, event any) (*Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return &Envelope{
		ID:    uuid.NewString(),
		Topic: topic,
		Time:  time.Now().UTC(),
		Data:  data,
	}, nil
}

// DecodeEnvelope parses a payload received from a Subscriber.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &env, nil
}

// Event types

type DecisionRecorded struct {
	Record *model.Record `json:"record"`
	Circle string        `json:"circle"`
}

type DecisionNormalized struct {
	RecordID string `json:"record_id"`
	Changed  bool   `json:"changed"`
	Failed   bool   `json:"failed"`
	Changes  string `json:"changes,omitempty"`
}

type DecisionAligned struct {
	RecordID  string `json:"record_id"`
	Objection bool   `json:"objection"`
	Failed    bool   `json:"failed"`
}

type ObjectionRaised struct {
	RecordID          string `json:"record_id"`
	PostID            string `json:"post_id"`
	SuggestedRevision string `json:"suggested_revision,omitempty"`
}

type FollowUpQueued struct {
	RecordID         string `json:"record_id"`
	BacklogChannelID string `json:"backlog_channel_id"`
}

type FollowUpPosted struct {
	RecordID         string `json:"record_id"`
	BacklogChannelID string `json:"backlog_channel_id"`
	PostID           string `json:"post_id,omitempty"`
	Error            string `json:"error,omitempty"`
}

type BacklogCreated struct {
	Record *model.Record `json:"record"`
	Circle string        `json:"circle"`
}

type MeetingStarted struct {
	Session *meeting.Session `json:"session"`
}

// Publisher emits events. Publishing is best effort: callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber delivers raw envelope payloads for a subject pattern. The
// returned cancel func unsubscribes and closes the channel; it is safe to
// call more than once.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// NoopPublisher discards events. Used when no NATS URL is configured.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (*NoopPublisher) Close() error { return nil }
