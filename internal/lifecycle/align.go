package lifecycle

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/hazel/internal/events"
	"github.com/alfredjeanlab/hazel/internal/model"
)

// Align runs one tick of the alignment lane. Alignment is one-shot: the lane
// flag is cleared after any outcome, including a failed call.
func (e *Engine) Align(ctx context.Context) (r *Report, err error) {
	r = &Report{Lane: LaneAlign}
	ctx, span := e.startTick(ctx, LaneAlign)
	defer func() { endTick(span, r, err) }()

	cands, err := e.scan(ctx, r, (*model.ControlBlock).AlignmentPending)
	if err != nil || len(cands) == 0 {
		return r, err
	}

	vision, handbook, err := e.readArchives(ctx)
	if err != nil {
		return r, err
	}

	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		r.count(e.alignRecord(ctx, c.rec, c.cb, vision, handbook))
	}
	return r, ctx.Err()
}

// readArchives reads the vision and handbook archives concurrently.
func (e *Engine) readArchives(ctx context.Context) (vision, handbook string, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vision, err = e.archive.Read(gctx, e.cfg.VisionChannelID)
		if err != nil {
			return fmt.Errorf("vision archive: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		handbook, err = e.archive.Read(gctx, e.cfg.HandbookChannelID)
		if err != nil {
			return fmt.Errorf("handbook archive: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return vision, handbook, nil
}

func (e *Engine) alignRecord(ctx context.Context, rec *model.Record, cb *model.ControlBlock, vision, handbook string) step {
	res, callErr := e.transform.Align(ctx, rec.ContentFields(), vision, handbook)
	if callErr != nil && deferred(ctx, callErr) {
		e.logger.Info("alignment deferred", "lane", LaneAlign, "record_id", rec.ID, "err", callErr)
		return stepDeferred
	}
	failed := callErr != nil || res == nil
	objection := !failed && res.Objection

	var postID string
	if objection {
		post, err := e.presenter.PostObjection(ctx, rec, res.SuggestedRevision)
		if err != nil {
			e.logger.Error("posting objection failed", "lane", LaneAlign, "record_id", rec.ID, "err", err)
			failed = true
		} else {
			postID = post.ID
			cb.RaiseObjection(e.cfg.Actor, e.now())
		}
	}
	cb.MarkAligned(e.now(), failed)

	if err := e.writeControl(ctx, rec.ID, rec.Fields, cb); err != nil {
		e.logger.Error("alignment write failed", "lane", LaneAlign, "record_id", rec.ID, "err", err)
		return stepRetry
	}

	if callErr != nil {
		e.logger.Warn("alignment failed", "lane", LaneAlign, "record_id", rec.ID, "err", callErr)
	} else {
		e.logger.Info("aligned decision", "lane", LaneAlign, "record_id", rec.ID, "objection", objection)
	}

	e.publish(ctx, events.TopicDecisionAligned, events.DecisionAligned{
		RecordID: rec.ID, Objection: objection && postID != "", Failed: failed,
	})
	if postID != "" {
		e.publish(ctx, events.TopicDecisionObjection, events.ObjectionRaised{
			RecordID: rec.ID, PostID: postID, SuggestedRevision: res.SuggestedRevision,
		})
	}
	return stepDone
}
