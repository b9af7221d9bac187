// Package server exposes hazel over HTTP (JSON API) and gRPC (health).
package server

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/outcome"
)

// LaneRunner runs and reports the lifecycle lanes.
type LaneRunner interface {
	RunOnce(ctx context.Context, lane lifecycle.Lane) (*lifecycle.Report, error)
	Status() []lifecycle.LaneStatus
}

// HazelServer serves the member and admin API on top of the outcome service
// and the lane scheduler.
type HazelServer struct {
	outcome *outcome.Service
	lanes   LaneRunner
	queue   *lifecycle.Queue
	health  *LaneHealth
	logger  *slog.Logger
}

// NewHazelServer returns a server. queue may be nil when the follow-up
// lanes run elsewhere.
func NewHazelServer(svc *outcome.Service, lanes LaneRunner, queue *lifecycle.Queue, health *LaneHealth, logger *slog.Logger) *HazelServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HazelServer{
		outcome: svc,
		lanes:   lanes,
		queue:   queue,
		health:  health,
		logger:  logger,
	}
}
