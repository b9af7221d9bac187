package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoControlBlock is returned for records that are not decisions.
var ErrNoControlBlock = errors.New("record has no control block")

// ControlBlockError reports a control block that could not be parsed.
type ControlBlockError struct {
	Raw string
	Err error
}

func (e *ControlBlockError) Error() string {
	return fmt.Sprintf("malformed control block: %v", e.Err)
}

func (e *ControlBlockError) Unwrap() error { return e.Err }

// TimeLayout is the timestamp format written into control blocks.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// DateLayout is the follow-up date format.
const DateLayout = "2006-01-02"

// FlexBool decodes JSON booleans as well as the strings "true" and "false",
// which older records carry.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(s) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

// ControlBlock is the per-decision state that drives the three lanes. The
// lanes are independent: a block may be pending in any combination of them.
type ControlBlock struct {
	PostProcess        FlexBool `json:"post_process"`
	PostProcessedTime  string   `json:"post_processed_time,omitempty"`
	PostProcessedError FlexBool `json:"post_processed_error"`
	PostProcessChanges string   `json:"post_process_changes,omitempty"`

	PostAlignment      FlexBool `json:"post_alignment,omitempty"`
	PostAlignmentTime  string   `json:"post_alignment_time,omitempty"`
	PostAlignmentError FlexBool `json:"post_alignment_error,omitempty"`

	NextActionDate        string    `json:"next_action_date,omitempty"`
	NextActionDateHandled *FlexBool `json:"next_action_date_handled,omitempty"`

	BacklogChannelID string `json:"backlog_channelId"`

	RaisedObjection     FlexBool `json:"raised_objection,omitempty"`
	RaisedObjectionBy   string   `json:"raised_objection_by,omitempty"`
	RaisedObjectionTime string   `json:"raised_objection_time,omitempty"`

	// Extra holds keys this version does not know about so that admin
	// additions survive a rewrite.
	Extra map[string]json.RawMessage `json:"-"`
}

type controlBlockAlias ControlBlock

var knownControlKeys = map[string]bool{
	"post_process": true, "post_processed_time": true, "post_processed_error": true,
	"post_process_changes": true, "post_alignment": true, "post_alignment_time": true,
	"post_alignment_error": true, "next_action_date": true, "next_action_date_handled": true,
	"backlog_channelId": true, "raised_objection": true, "raised_objection_by": true,
	"raised_objection_time": true,
}

// ParseControlBlock decodes a serialized control block.
func ParseControlBlock(raw string) (*ControlBlock, error) {
	var cb ControlBlock
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		return nil, &ControlBlockError{Raw: raw, Err: err}
	}
	return &cb, nil
}

func (cb *ControlBlock) UnmarshalJSON(data []byte) error {
	var alias controlBlockAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*cb = ControlBlock(alias)
	for k, v := range all {
		if knownControlKeys[k] {
			continue
		}
		if cb.Extra == nil {
			cb.Extra = make(map[string]json.RawMessage)
		}
		cb.Extra[k] = v
	}
	return nil
}

func (cb ControlBlock) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(controlBlockAlias(cb))
	if err != nil || len(cb.Extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range cb.Extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// Encode serializes the control block for storage in the meta_data field.
func (cb *ControlBlock) Encode() (string, error) {
	data, err := json.Marshal(cb)
	if err != nil {
		return "", fmt.Errorf("encode control block: %w", err)
	}
	return string(data), nil
}

// Clone returns a deep copy.
func (cb *ControlBlock) Clone() *ControlBlock {
	c := *cb
	if cb.NextActionDateHandled != nil {
		h := *cb.NextActionDateHandled
		c.NextActionDateHandled = &h
	}
	if cb.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(cb.Extra))
		for k, v := range cb.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// NormalizationPending reports whether the normalization lane must run.
func (cb *ControlBlock) NormalizationPending() bool {
	return bool(cb.PostProcess) && strings.TrimSpace(cb.PostProcessedTime) == ""
}

// AlignmentPending reports whether the alignment lane must run.
func (cb *ControlBlock) AlignmentPending() bool {
	return bool(cb.PostAlignment)
}

// FollowUpPending reports whether a follow-up date is set and not yet handled.
func (cb *ControlBlock) FollowUpPending() bool {
	if strings.TrimSpace(cb.NextActionDate) == "" {
		return false
	}
	return cb.NextActionDateHandled == nil || !bool(*cb.NextActionDateHandled)
}

// MarkNormalized records a terminal normalization outcome.
func (cb *ControlBlock) MarkNormalized(at time.Time, failed bool) {
	cb.PostProcessedTime = FormatTime(at)
	cb.PostProcessedError = FlexBool(failed)
}

// MarkAligned turns the alignment lane off after any outcome.
func (cb *ControlBlock) MarkAligned(at time.Time, failed bool) {
	cb.PostAlignment = false
	cb.PostAlignmentTime = FormatTime(at)
	if failed {
		cb.PostAlignmentError = true
	}
}

// RaiseObjection records that an objection was raised by actor.
func (cb *ControlBlock) RaiseObjection(actor string, at time.Time) {
	cb.RaisedObjection = true
	cb.RaisedObjectionBy = actor
	cb.RaisedObjectionTime = FormatTime(at)
}

// ArmFollowUp sets the follow-up date and re-arms the follow-up lane.
func (cb *ControlBlock) ArmFollowUp(date string) {
	cb.NextActionDate = date
	handled := FlexBool(false)
	cb.NextActionDateHandled = &handled
}

// MarkFollowUpHandled marks the follow-up as handled.
func (cb *ControlBlock) MarkFollowUpHandled() {
	handled := FlexBool(true)
	cb.NextActionDateHandled = &handled
}

// AppendChanges appends a change description to PostProcessChanges.
func (cb *ControlBlock) AppendChanges(desc string) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return
	}
	if cb.PostProcessChanges == "" {
		cb.PostProcessChanges = desc
		return
	}
	cb.PostProcessChanges += "\n" + desc
}

// FollowUpDate parses NextActionDate. Both plain dates and full timestamps
// are accepted; plain dates are interpreted in loc.
func (cb *ControlBlock) FollowUpDate(loc *time.Location) (time.Time, error) {
	return ParseDate(cb.NextActionDate, loc)
}

// ParseDate parses a follow-up date in DateLayout or RFC 3339 form.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid follow-up date %q", s)
}

// IsISODate reports whether s is a plain YYYY-MM-DD date.
func IsISODate(s string) bool {
	_, err := time.Parse(DateLayout, strings.TrimSpace(s))
	return err == nil
}

// FormatTime renders a control block timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NewControlBlock returns the control block written when an outcome is
// recorded. Lanes default to not-pending unless opted in.
func NewControlBlock(backlogChannelID string, normalize, align bool) *ControlBlock {
	return &ControlBlock{
		PostProcess:      FlexBool(normalize),
		PostAlignment:    FlexBool(align),
		BacklogChannelID: backlogChannelID,
	}
}
