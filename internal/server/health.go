package server

import (
	"sync"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/hazel/internal/lifecycle"
)

// Health service names reported over grpc.health.v1. The two follow-up
// lanes share one service.
const (
	HealthNormalize = "normalize"
	HealthAlign     = "align"
	HealthFollowUp  = "followup"
)

func healthService(lane lifecycle.Lane) string {
	switch lane {
	case lifecycle.LaneNormalize:
		return HealthNormalize
	case lifecycle.LaneAlign:
		return HealthAlign
	}
	return HealthFollowUp
}

// LaneHealth maps lane tick outcomes onto a gRPC health server. A service is
// SERVING while its last tick succeeded and NOT_SERVING otherwise; disabled
// lanes report NOT_SERVING from the start.
type LaneHealth struct {
	srv *health.Server

	mu     sync.Mutex
	failed map[lifecycle.Lane]bool
}

// NewLaneHealth creates the health server for the given lane intervals.
func NewLaneHealth(intervals lifecycle.Intervals) *LaneHealth {
	h := &LaneHealth{srv: health.NewServer(), failed: make(map[lifecycle.Lane]bool)}
	enabled := map[string]bool{}
	for _, lane := range lifecycle.Lanes {
		if intervals[lane] > 0 {
			enabled[healthService(lane)] = true
		}
	}
	for _, svc := range []string{HealthNormalize, HealthAlign, HealthFollowUp} {
		h.srv.SetServingStatus(svc, servingStatus(enabled[svc]))
	}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return h
}

// Server returns the grpc.health.v1 implementation.
func (h *LaneHealth) Server() *health.Server { return h.srv }

// ObserveTick records a tick outcome. It has the signature of
// lifecycle.Scheduler.OnTick.
func (h *LaneHealth) ObserveTick(lane lifecycle.Lane, _ *lifecycle.Report, err error) {
	svc := healthService(lane)

	h.mu.Lock()
	h.failed[lane] = err != nil
	ok := true
	for l, failed := range h.failed {
		if healthService(l) == svc && failed {
			ok = false
		}
	}
	h.mu.Unlock()

	h.srv.SetServingStatus(svc, servingStatus(ok))
}

// Shutdown flips every service to NOT_SERVING.
func (h *LaneHealth) Shutdown() { h.srv.Shutdown() }

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
