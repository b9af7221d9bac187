package lifecycle

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/hazel/internal/events"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
)

// EnqueueFollowUps queues every decision in the history window with a pending
// follow-up. It never writes to the record store.
func (e *Engine) EnqueueFollowUps(ctx context.Context) (r *Report, err error) {
	r = &Report{Lane: LaneFollowUpEnqueue}
	ctx, span := e.startTick(ctx, LaneFollowUpEnqueue)
	defer func() { endTick(span, r, err) }()

	cands, err := e.scan(ctx, r, (*model.ControlBlock).FollowUpPending)
	if err != nil {
		return r, err
	}
	for _, c := range cands {
		entry := Entry{
			RecordID:         c.rec.ID,
			BacklogChannelID: c.cb.BacklogChannelID,
			QueuedAt:         e.now().UTC(),
		}
		if !e.queue.Add(entry) {
			continue
		}
		r.Processed++
		e.logger.Debug("queued follow-up", "lane", LaneFollowUpEnqueue, "record_id", c.rec.ID, "date", c.cb.NextActionDate)
		e.publish(ctx, events.TopicFollowUpQueued, events.FollowUpQueued{
			RecordID: entry.RecordID, BacklogChannelID: entry.BacklogChannelID,
		})
	}
	return r, nil
}

// DrainFollowUps walks the queue from back to front. Entries that are not due
// stay queued; every other entry is dropped after at most one attempt.
//
// A due record is marked handled and written back before the follow-up is
// posted. A crash between the two loses the post; it never duplicates it.
func (e *Engine) DrainFollowUps(ctx context.Context) (r *Report, err error) {
	r = &Report{Lane: LaneFollowUpDrain}
	ctx, span := e.startTick(ctx, LaneFollowUpDrain)
	defer func() { endTick(span, r, err) }()

	entries := e.queue.Snapshot()
	r.Scanned = len(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		switch e.drainEntry(ctx, entries[i]) {
		case drainKeep:
		case drainStale:
			r.Skipped++
			e.queue.Remove(entries[i].RecordID)
		case drainPosted:
			r.Matched++
			r.Processed++
			e.queue.Remove(entries[i].RecordID)
		case drainFailed:
			r.Matched++
			r.Failed++
			e.queue.Remove(entries[i].RecordID)
		}
	}
	return r, nil
}

type drainResult int

const (
	drainKeep drainResult = iota
	drainStale
	drainPosted
	drainFailed
)

func (e *Engine) drainEntry(ctx context.Context, entry Entry) drainResult {
	log := e.logger.With("lane", LaneFollowUpDrain, "record_id", entry.RecordID)

	rec, err := e.store.GetRecord(ctx, entry.RecordID)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug("dropping follow-up for deleted record")
		return drainStale
	}
	if err != nil {
		log.Warn("reading queued record failed", "err", err)
		return drainKeep
	}

	cb, err := rec.Control()
	if errors.Is(err, model.ErrNoControlBlock) {
		return drainStale
	}
	if err != nil {
		log.Warn("queued record has malformed control block", "err", err)
		return drainKeep
	}
	if !cb.FollowUpPending() {
		return drainStale
	}

	due, err := cb.FollowUpDate(e.cfg.Location)
	if err != nil {
		log.Debug("follow-up date not parseable yet", "date", cb.NextActionDate)
		return drainKeep
	}
	if e.now().Before(due.Add(-e.cfg.LeadTime)) {
		return drainKeep
	}

	cb.MarkFollowUpHandled()
	if err := e.writeControl(ctx, rec.ID, rec.Fields, cb); err != nil {
		log.Error("marking follow-up handled failed", "err", err)
		return drainFailed
	}

	backlog := entry.BacklogChannelID
	if backlog == "" {
		backlog = cb.BacklogChannelID
	}
	ev := events.FollowUpPosted{RecordID: rec.ID, BacklogChannelID: backlog}
	post, err := e.presenter.PostFollowUp(ctx, rec, backlog)
	if err != nil {
		log.Error("posting follow-up failed; record stays handled", "err", err)
		ev.Error = err.Error()
		e.publish(ctx, events.TopicFollowUpPosted, ev)
		return drainFailed
	}

	log.Info("posted follow-up", "post_id", post.ID, "backlog_channel_id", backlog)
	ev.PostID = post.ID
	e.publish(ctx, events.TopicFollowUpPosted, ev)
	return drainPosted
}
