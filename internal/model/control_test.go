package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseControlBlock_StringBooleans(t *testing.T) {
	cb, err := ParseControlBlock(`{"post_process":"true","post_processed_error":false,"next_action_date":"2025-08-06","next_action_date_handled":"false","backlog_channelId":"111"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cb.PostProcess {
		t.Error("expected post_process true")
	}
	if cb.NextActionDateHandled == nil || *cb.NextActionDateHandled {
		t.Error("expected next_action_date_handled false")
	}
	if !cb.FollowUpPending() {
		t.Error("expected follow-up pending")
	}
	if cb.BacklogChannelID != "111" {
		t.Errorf("BacklogChannelID = %q, want 111", cb.BacklogChannelID)
	}
}

func TestParseControlBlock_Malformed(t *testing.T) {
	_, err := ParseControlBlock(`{not json`)
	var cbe *ControlBlockError
	if !errors.As(err, &cbe) {
		t.Fatalf("expected *ControlBlockError, got %v", err)
	}
	if cbe.Raw != `{not json` {
		t.Errorf("Raw = %q", cbe.Raw)
	}
}

func TestControlBlock_PreservesUnknownKeys(t *testing.T) {
	cb, err := ParseControlBlock(`{"post_process":true,"backlog_channelId":"1","reviewer":"ada","weight":3}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cb.MarkNormalized(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), false)

	raw, err := cb.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var all map[string]any
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if all["reviewer"] != "ada" {
		t.Errorf("reviewer = %v, want ada", all["reviewer"])
	}
	if all["weight"] != float64(3) {
		t.Errorf("weight = %v, want 3", all["weight"])
	}
	if all["post_processed_time"] != "2025-01-02T03:04:05.000Z" {
		t.Errorf("post_processed_time = %v", all["post_processed_time"])
	}
}

func TestControlBlock_Predicates(t *testing.T) {
	handled := FlexBool(true)
	for _, tc := range []struct {
		name     string
		cb       ControlBlock
		normPend bool
		alnPend  bool
		fupPend  bool
	}{
		{name: "Empty", cb: ControlBlock{}},
		{name: "NormalizePending", cb: ControlBlock{PostProcess: true}, normPend: true},
		{name: "NormalizeBlankTime", cb: ControlBlock{PostProcess: true, PostProcessedTime: "  "}, normPend: true},
		{name: "NormalizeDone", cb: ControlBlock{PostProcess: true, PostProcessedTime: "2025-01-01T00:00:00.000Z"}},
		{name: "AlignPending", cb: ControlBlock{PostAlignment: true}, alnPend: true},
		{name: "FollowUpAbsentHandled", cb: ControlBlock{NextActionDate: "2025-01-01"}, fupPend: true},
		{name: "FollowUpHandled", cb: ControlBlock{NextActionDate: "2025-01-01", NextActionDateHandled: &handled}},
		{name: "AllLanes", cb: ControlBlock{PostProcess: true, PostAlignment: true, NextActionDate: "2025-01-01"}, normPend: true, alnPend: true, fupPend: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cb.NormalizationPending(); got != tc.normPend {
				t.Errorf("NormalizationPending = %v, want %v", got, tc.normPend)
			}
			if got := tc.cb.AlignmentPending(); got != tc.alnPend {
				t.Errorf("AlignmentPending = %v, want %v", got, tc.alnPend)
			}
			if got := tc.cb.FollowUpPending(); got != tc.fupPend {
				t.Errorf("FollowUpPending = %v, want %v", got, tc.fupPend)
			}
		})
	}
}

func TestControlBlock_MarkAlignedTurnsLaneOff(t *testing.T) {
	cb := &ControlBlock{PostAlignment: true}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cb.MarkAligned(now, true)

	if cb.PostAlignment {
		t.Error("expected post_alignment false")
	}
	if !cb.PostAlignmentError {
		t.Error("expected post_alignment_error true")
	}
	if cb.PostAlignmentTime != FormatTime(now) {
		t.Errorf("PostAlignmentTime = %q", cb.PostAlignmentTime)
	}
}

func TestControlBlock_AppendChanges(t *testing.T) {
	cb := &ControlBlock{}
	cb.AppendChanges("fixed typo")
	cb.AppendChanges("  ")
	cb.AppendChanges("set date")
	if cb.PostProcessChanges != "fixed typo\nset date" {
		t.Errorf("PostProcessChanges = %q", cb.PostProcessChanges)
	}
}

func TestControlBlock_CloneIsDeep(t *testing.T) {
	cb := &ControlBlock{Extra: map[string]json.RawMessage{"k": json.RawMessage(`1`)}}
	cb.ArmFollowUp("2025-02-03")

	c := cb.Clone()
	c.MarkFollowUpHandled()
	c.Extra["k"] = json.RawMessage(`2`)

	if *cb.NextActionDateHandled {
		t.Error("clone mutation leaked into original handled flag")
	}
	if string(cb.Extra["k"]) != "1" {
		t.Error("clone mutation leaked into original extra")
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	for _, tc := range []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025-08-06", want: time.Date(2025, 8, 6, 0, 0, 0, 0, loc)},
		{in: " 2025-08-06 ", want: time.Date(2025, 8, 6, 0, 0, 0, 0, loc)},
		{in: "2025-08-06T10:00:00Z", want: time.Date(2025, 8, 6, 10, 0, 0, 0, time.UTC)},
		{in: "om 2 uger", wantErr: true},
		{in: "", wantErr: true},
	} {
		got, err := ParseDate(tc.in, loc)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDate(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q): %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewControlBlock_Defaults(t *testing.T) {
	raw, err := NewControlBlock("42", false, false).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(raw, "post_alignment") || strings.Contains(raw, "next_action_date") {
		t.Errorf("unexpected opt-in keys in %s", raw)
	}
	if !strings.Contains(raw, `"backlog_channelId":"42"`) {
		t.Errorf("missing backlog channel in %s", raw)
	}
}
