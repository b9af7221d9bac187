package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_UnknownLane(t *testing.T) {
	h := newHarness(t, 0)
	s := NewScheduler(h.engine, Intervals{}, discardLogger())

	_, err := s.RunOnce(context.Background(), Lane("reindex"))
	assert.ErrorIs(t, err, ErrUnknownLane)
}

func TestScheduler_RunOnceDisabledLane(t *testing.T) {
	h := newHarness(t, 0)
	h.addDecision(t, "rec-1", pendingNormalize, time.Hour)
	s := NewScheduler(h.engine, Intervals{LaneNormalize: 0, LaneFollowUpEnqueue: time.Minute}, discardLogger())

	r, err := s.RunOnce(context.Background(), LaneNormalize)
	assert.ErrorIs(t, err, ErrLaneDisabled)
	assert.Nil(t, r)
	assert.Zero(t, h.transform.normCalls)
	assert.Zero(t, h.store.replaceCount())
	assert.True(t, h.control(t, "rec-1").NormalizationPending())
	assert.True(t, s.Status()[0].LastRun.IsZero())

	_, err = s.RunOnce(context.Background(), LaneAlign)
	assert.ErrorIs(t, err, ErrLaneDisabled)

	_, err = s.RunOnce(context.Background(), LaneFollowUpEnqueue)
	assert.NoError(t, err)
}

func TestScheduler_RunOnceWhileBusy(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, 0)
	h.transform.block = make(chan struct{})
	h.addDecision(t, "rec-1", pendingNormalize, time.Hour)
	s := NewScheduler(h.engine, Intervals{LaneNormalize: time.Hour, LaneFollowUpEnqueue: time.Hour}, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background(), LaneNormalize)
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Status()[0].Running }, time.Second, 5*time.Millisecond)

	_, err := s.RunOnce(context.Background(), LaneNormalize)
	assert.ErrorIs(t, err, ErrLaneBusy)

	// Other lanes are not blocked by a busy lane.
	_, err = s.RunOnce(context.Background(), LaneFollowUpEnqueue)
	assert.NoError(t, err)

	close(h.transform.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.transform.normCalls)
	assert.False(t, s.Status()[0].Running)
}

func TestScheduler_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, 0)
	h.addDecision(t, "rec-1", pendingNormalize, time.Hour)

	var ticks atomic.Int64
	s := NewScheduler(h.engine, Intervals{
		LaneNormalize:       10 * time.Millisecond,
		LaneFollowUpEnqueue: 10 * time.Millisecond,
	}, discardLogger())
	s.OnTick = func(Lane, *Report, error) { ticks.Add(1) }

	s.Start()
	require.Eventually(t, func() bool {
		return !h.control(t, "rec-1").NormalizationPending()
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return ticks.Load() >= 4 }, time.Second, 5*time.Millisecond)
	s.Stop()

	status := s.Status()
	require.Len(t, status, len(Lanes))
	assert.True(t, status[0].Enabled)
	assert.False(t, status[1].Enabled)
	assert.False(t, status[0].LastRun.IsZero())
	assert.True(t, status[1].LastRun.IsZero())
	assert.Equal(t, 1, h.transform.normCalls)
}
