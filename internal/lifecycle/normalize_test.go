package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/transform"
)

const pendingNormalize = `{"post_process":true,"post_processed_time":"","post_processed_error":false,"backlog_channelId":"111"}`

func TestNormalize_TerminalOutcomes(t *testing.T) {
	for _, tc := range []struct {
		name        string
		normalize   func([]model.Field) (*transform.NormalizedResult, error)
		wantError   bool
		wantOutcome string
	}{
		{
			name:        "Unchanged",
			wantOutcome: "Vi bygger et skur",
		},
		{
			name: "Changed",
			normalize: func(f []model.Field) (*transform.NormalizedResult, error) {
				return &transform.NormalizedResult{
					Fields:  model.SetField(f, model.FieldOutcome, "Vi bygger et cykelskur"),
					Changes: "Præciserede udfald",
				}, nil
			},
			wantOutcome: "Vi bygger et cykelskur",
		},
		{
			name: "CallFails",
			normalize: func([]model.Field) (*transform.NormalizedResult, error) {
				return nil, errBoom
			},
			wantError:   true,
			wantOutcome: "Vi bygger et skur",
		},
		{
			name: "FlaggedError",
			normalize: func(f []model.Field) (*transform.NormalizedResult, error) {
				return &transform.NormalizedResult{Fields: model.SetField(f, model.FieldOutcome, "garbage"), Error: true}, nil
			},
			wantError:   true,
			wantOutcome: "Vi bygger et skur",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 0)
			h.transform.normalize = tc.normalize
			id := h.addDecision(t, "rec-1", pendingNormalize, time.Hour)

			r, err := h.engine.Normalize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, r.Matched)
			assert.Equal(t, 1, r.Processed)

			cb := h.control(t, id)
			assert.True(t, bool(cb.PostProcess))
			assert.Equal(t, model.FormatTime(testStart), cb.PostProcessedTime)
			assert.Equal(t, tc.wantError, bool(cb.PostProcessedError))
			assert.False(t, cb.NormalizationPending())

			got, _ := model.FieldValue(h.fields(t, id), model.FieldOutcome)
			assert.Equal(t, tc.wantOutcome, got)
		})
	}
}

func TestNormalize_UnchangedWritesOnlyControlBlock(t *testing.T) {
	h := newHarness(t, 0)
	id := h.addDecision(t, "rec-1", pendingNormalize, time.Hour)
	before := model.WithoutControl(h.fields(t, id))

	_, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, h.store.replaceCount())
	after := h.fields(t, id)
	if diff := cmp.Diff(before, model.WithoutControl(after)); diff != "" {
		t.Errorf("content fields changed (-before +after):\n%s", diff)
	}
	assert.Equal(t, model.MetaFieldName, after[len(after)-1].Name)

	cb := h.control(t, id)
	assert.Equal(t, "", cb.PostProcessChanges)
	assert.False(t, bool(cb.PostProcessedError))
}

func TestNormalize_Idempotent(t *testing.T) {
	h := newHarness(t, 0)
	h.addDecision(t, "rec-1", pendingNormalize, time.Hour)

	_, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)

	r, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, r.Matched)
	assert.Equal(t, 1, h.transform.normCalls)
	assert.Equal(t, 1, h.store.replaceCount())
}

func TestNormalize_ChangedDateRearmsFollowUp(t *testing.T) {
	h := newHarness(t, 0)
	h.transform.normalize = func(f []model.Field) (*transform.NormalizedResult, error) {
		return &transform.NormalizedResult{
			Fields:  model.SetField(f, model.FieldNextActionDate, "2025-08-15"),
			Changes: "Satte opfølgningsdato",
		}, nil
	}
	id := h.addDecision(t, "rec-1",
		`{"post_process":true,"post_process_changes":"tidligere","next_action_date":"om 2 uger","next_action_date_handled":true,"backlog_channelId":"111"}`,
		time.Hour,
		model.Field{Name: model.FieldNextActionDate, Value: "om 2 uger"},
	)

	_, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)

	cb := h.control(t, id)
	assert.Equal(t, "2025-08-15", cb.NextActionDate)
	require.NotNil(t, cb.NextActionDateHandled)
	assert.False(t, bool(*cb.NextActionDateHandled))
	assert.True(t, cb.FollowUpPending())
	assert.Equal(t, "tidligere\nSatte opfølgningsdato", cb.PostProcessChanges)
}

func TestNormalize_SameDateRearmsFollowUp(t *testing.T) {
	h := newHarness(t, 0)
	h.transform.normalize = func(f []model.Field) (*transform.NormalizedResult, error) {
		return &transform.NormalizedResult{
			Fields:  model.SetField(f, model.FieldOutcome, "Vi bygger et cykelskur"),
			Changes: "Præciserede udfald",
		}, nil
	}
	id := h.addDecision(t, "rec-1",
		`{"post_process":true,"next_action_date":"2025-08-15","next_action_date_handled":true,"backlog_channelId":"111"}`,
		time.Hour,
		model.Field{Name: model.FieldNextActionDate, Value: "2025-08-15"},
	)

	_, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)

	cb := h.control(t, id)
	assert.Equal(t, "2025-08-15", cb.NextActionDate)
	assert.True(t, cb.FollowUpPending())
}

func TestNormalize_DeferredCallLeavesRecordPending(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cancel  bool
		callErr error
		wantErr error
	}{
		{name: "Cancelled", cancel: true, callErr: context.Canceled, wantErr: context.Canceled},
		{name: "NoProvider", callErr: transform.ErrDisabled},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 0)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			h.transform.normalize = func([]model.Field) (*transform.NormalizedResult, error) {
				if tc.cancel {
					cancel()
				}
				return nil, tc.callErr
			}
			id := h.addDecision(t, "rec-1", pendingNormalize, time.Hour)

			r, err := h.engine.Normalize(ctx)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 0, r.Processed)
			assert.Equal(t, 1, r.Skipped)
			assert.Equal(t, 0, h.store.replaceCount())

			cb := h.control(t, id)
			assert.True(t, cb.NormalizationPending())
			assert.False(t, bool(cb.PostProcessedError))
		})
	}
}

func TestNormalize_SkipsMalformedControlBlock(t *testing.T) {
	h := newHarness(t, 0)
	id := h.addDecision(t, "rec-1", `{"post_process":tru`, time.Hour)
	before := h.fields(t, id)

	r, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 0, h.transform.normCalls)
	assert.Equal(t, before, h.fields(t, id))
}

func TestNormalize_IgnoresRecordsOutsideWindow(t *testing.T) {
	h := newHarness(t, 0)
	h.addDecision(t, "old", pendingNormalize, 8*24*time.Hour)
	h.addDecision(t, "new", pendingNormalize, time.Hour)

	r, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Scanned)
	assert.True(t, h.control(t, "old").NormalizationPending())
	assert.False(t, h.control(t, "new").NormalizationPending())
}

func TestNormalize_ProcessesEveryPage(t *testing.T) {
	h := newHarness(t, 0)
	for i := 0; i < 5; i++ {
		h.addDecision(t, fmt.Sprintf("rec-%d", i), pendingNormalize, time.Duration(i+1)*time.Minute)
	}
	h.addDecision(t, "not-pending", `{"post_process":false,"backlog_channelId":"111"}`, time.Minute)
	require.NoError(t, h.store.CreateRecord(context.Background(), &model.Record{
		ID: "plain", ChannelID: decisionChannel, CreatedAt: testStart.Add(-time.Minute),
	}))

	r, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, r.Scanned)
	assert.Equal(t, 5, r.Matched)
	assert.Equal(t, 5, r.Processed)
}

func TestNormalize_WriteFailureLeavesRecordPending(t *testing.T) {
	h := newHarness(t, 0)
	id := h.addDecision(t, "rec-1", pendingNormalize, time.Hour)
	h.store.failWrite = true

	r, err := h.engine.Normalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)
	assert.True(t, h.control(t, id).NormalizationPending())
}
