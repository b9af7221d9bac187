package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Lane names a periodic job of the engine.
type Lane string

const (
	LaneNormalize       Lane = "normalize"
	LaneAlign           Lane = "align"
	LaneFollowUpEnqueue Lane = "followup-enqueue"
	LaneFollowUpDrain   Lane = "followup-drain"
)

// Lanes lists every lane in run order.
var Lanes = []Lane{LaneNormalize, LaneAlign, LaneFollowUpEnqueue, LaneFollowUpDrain}

// ErrLaneBusy is returned by RunOnce while the lane's previous tick is still running.
var ErrLaneBusy = errors.New("lane is busy")

// ErrUnknownLane is returned for a lane name that does not exist.
var ErrUnknownLane = errors.New("unknown lane")

// ErrLaneDisabled is returned by RunOnce for a lane with a zero interval.
var ErrLaneDisabled = errors.New("lane is disabled")

// Intervals are the per-lane tick intervals. A zero interval disables the lane.
type Intervals map[Lane]time.Duration

// LaneStatus is the last observed state of a lane.
type LaneStatus struct {
	Lane     Lane          `json:"lane"`
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
	Running  bool          `json:"running"`
	LastRun  time.Time     `json:"last_run,omitzero"`
	LastErr  string        `json:"last_error,omitempty"`
	Last     *Report       `json:"last_report,omitempty"`
}

type laneState struct {
	busy atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	last    *Report
}

// Scheduler drives each lane from its own ticker. A lane never overlaps
// itself: ticks that fire while the lane is running are dropped.
type Scheduler struct {
	engine    *Engine
	intervals Intervals
	logger    *slog.Logger
	lanes     map[Lane]*laneState

	// OnTick, when set, is called after every tick.
	OnTick func(lane Lane, r *Report, err error)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler for e.
func NewScheduler(e *Engine, intervals Intervals, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		engine:    e,
		intervals: intervals,
		logger:    logger,
		lanes:     make(map[Lane]*laneState, len(Lanes)),
	}
	for _, lane := range Lanes {
		s.lanes[lane] = &laneState{}
	}
	return s
}

// Start launches one goroutine per enabled lane. Each lane ticks once
// immediately, then on its interval.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, lane := range Lanes {
		interval := s.intervals[lane]
		if interval <= 0 {
			s.logger.Info("lane disabled", "lane", lane)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, lane, interval)
		}()
	}
}

// Stop cancels all lanes and waits for running ticks to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, lane Lane, interval time.Duration) {
	s.tick(ctx, lane)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, lane)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, lane Lane) {
	if _, err := s.RunOnce(ctx, lane); err != nil && !errors.Is(err, ErrLaneBusy) && ctx.Err() == nil {
		s.logger.Error("lane tick failed", "lane", lane, "err", err)
	}
}

// RunOnce runs a single tick of lane unless it is disabled or already
// running.
func (s *Scheduler) RunOnce(ctx context.Context, lane Lane) (*Report, error) {
	st, ok := s.lanes[lane]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLane, lane)
	}
	if s.intervals[lane] <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrLaneDisabled, lane)
	}
	if !st.busy.CompareAndSwap(false, true) {
		return nil, ErrLaneBusy
	}
	defer st.busy.Store(false)

	r, err := s.dispatch(ctx, lane)

	st.mu.Lock()
	st.lastRun = s.engine.now()
	st.lastErr = err
	st.last = r
	st.mu.Unlock()

	if err == nil {
		s.logger.Debug("lane tick", "lane", lane, "matched", r.Matched, "processed", r.Processed, "failed", r.Failed)
	}
	if s.OnTick != nil {
		s.OnTick(lane, r, err)
	}
	return r, err
}

func (s *Scheduler) dispatch(ctx context.Context, lane Lane) (*Report, error) {
	switch lane {
	case LaneNormalize:
		return s.engine.Normalize(ctx)
	case LaneAlign:
		return s.engine.Align(ctx)
	case LaneFollowUpEnqueue:
		return s.engine.EnqueueFollowUps(ctx)
	case LaneFollowUpDrain:
		return s.engine.DrainFollowUps(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLane, lane)
}

// Status returns the state of every lane in run order.
func (s *Scheduler) Status() []LaneStatus {
	out := make([]LaneStatus, 0, len(Lanes))
	for _, lane := range Lanes {
		st := s.lanes[lane]
		st.mu.Lock()
		ls := LaneStatus{
			Lane:     lane,
			Enabled:  s.intervals[lane] > 0,
			Interval: s.intervals[lane],
			Running:  st.busy.Load(),
			LastRun:  st.lastRun,
			Last:     st.last,
		}
		if st.lastErr != nil {
			ls.LastErr = st.lastErr.Error()
		}
		st.mu.Unlock()
		out = append(out, ls)
	}
	return out
}
