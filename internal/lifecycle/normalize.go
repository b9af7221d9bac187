package lifecycle

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/hazel/internal/events"
	"github.com/alfredjeanlab/hazel/internal/model"
)

// Normalize runs one tick of the normalization lane. Every pending record
// reaches exactly one terminal outcome; a failed transform is terminal too.
// Records whose write fails stay pending and are retried on a later tick,
// as do records reached by a cancelled tick.
func (e *Engine) Normalize(ctx context.Context) (r *Report, err error) {
	r = &Report{Lane: LaneNormalize}
	ctx, span := e.startTick(ctx, LaneNormalize)
	defer func() { endTick(span, r, err) }()

	cands, err := e.scan(ctx, r, (*model.ControlBlock).NormalizationPending)
	if err != nil {
		return r, err
	}
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		r.count(e.normalizeRecord(ctx, c.rec, c.cb))
	}
	return r, ctx.Err()
}

func (e *Engine) normalizeRecord(ctx context.Context, rec *model.Record, cb *model.ControlBlock) step {
	content := rec.ContentFields()
	res, callErr := e.transform.Normalize(ctx, content)
	if callErr != nil && deferred(ctx, callErr) {
		e.logger.Info("normalization deferred", "lane", LaneNormalize, "record_id", rec.ID, "err", callErr)
		return stepDeferred
	}
	now := e.now()

	fields := rec.Fields
	failed := callErr != nil || res == nil || res.Error
	changed := false

	switch {
	case failed:
		cb.MarkNormalized(now, true)
	case !model.EqualFields(content, res.Fields):
		changed = true
		fields = res.Fields
		if date, ok := model.FieldValue(res.Fields, model.FieldNextActionDate); ok {
			date = strings.TrimSpace(date)
			if date != "" {
				cb.ArmFollowUp(date)
			}
		}
		cb.AppendChanges(res.Changes)
		cb.MarkNormalized(now, false)
	default:
		cb.MarkNormalized(now, false)
	}

	if err := e.writeControl(ctx, rec.ID, fields, cb); err != nil {
		e.logger.Error("normalization write failed", "lane", LaneNormalize, "record_id", rec.ID, "err", err)
		return stepRetry
	}

	if failed {
		e.logger.Warn("normalization failed", "lane", LaneNormalize, "record_id", rec.ID, "err", callErr)
	} else {
		e.logger.Info("normalized decision", "lane", LaneNormalize, "record_id", rec.ID, "changed", changed)
	}

	ev := events.DecisionNormalized{RecordID: rec.ID, Changed: changed, Failed: failed}
	if changed {
		ev.Changes = res.Changes
	}
	e.publish(ctx, events.TopicDecisionNormalized, ev)
	return stepDone
}
