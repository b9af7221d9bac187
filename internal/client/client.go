// Package client provides the interface the hazel CLI uses to talk to a
// running hazel server, and an HTTP/JSON implementation of it.
package client

import (
	"context"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/meeting"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/outcome"
)

// HazelClient is implemented by HTTPClient.
type HazelClient interface {
	Health(ctx context.Context) (string, error)

	// Circles and meetings
	ListCircles(ctx context.Context) ([]*model.Circle, error)
	CreateBacklogItem(ctx context.Context, req *outcome.BacklogRequest) (*model.Record, error)
	StartMeeting(ctx context.Context, circle string, participants []string) (*meeting.Session, error)
	GetMeeting(ctx context.Context, circle string) (*meeting.Session, error)

	// Decisions
	RecordOutcome(ctx context.Context, req *outcome.OutcomeRequest) (*model.Record, error)
	GetDecision(ctx context.Context, id string) (*Decision, error)
	EditField(ctx context.Context, id string, req *EditRequest) (*model.Record, error)
	EditControl(ctx context.Context, id string, req *EditRequest) (*model.Record, error)
	FollowUps(ctx context.Context) (*FollowUps, error)

	// Lanes
	ListLanes(ctx context.Context) ([]lifecycle.LaneStatus, error)
	RunLane(ctx context.Context, lane string) (*lifecycle.Report, error)
	Ask(ctx context.Context, question string) (string, error)

	Close() error
}

// Decision is a stored decision with its parsed control block. When the
// block cannot be parsed, ControlError holds the reason and Control is nil.
type Decision struct {
	Record       *model.Record       `json:"record"`
	Control      *model.ControlBlock `json:"control,omitempty"`
	ControlError string              `json:"control_error,omitempty"`
}

// EditRequest is one admin edit. Name is a field name for EditField and a
// control block key for EditControl.
type EditRequest struct {
	Method string `json:"method"`
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
}

// FollowUps lists decisions awaiting a follow-up and the entries already
// waiting in the drain queue.
type FollowUps struct {
	Pending []*model.Record   `json:"pending"`
	Queued  []lifecycle.Entry `json:"queued"`
}
