package model

import (
	"time"
)

// MetaFieldName is the field that carries a record's serialized ControlBlock.
const MetaFieldName = "meta_data"

// Field names used by decision and backlog records. They are community-facing
// labels and stay in the language the circles write in.
const (
	FieldCircle              = "Cirkel"
	FieldAuthor              = "Forfatter"
	FieldAgendaType          = "Agenda type"
	FieldOriginalTitle       = "Original Overskrift"
	FieldOriginalDescription = "Original Beskrivelse"
	FieldOutcome             = "Udfald"
	FieldParticipants        = "Deltagere"
	FieldNextActionDate      = "Opfølgningsdato"
	FieldResponsible         = "Ansvarlig"
	FieldHeadline            = "Overskrift"
	FieldDescription         = "Beskrivelse"
	FieldLastOutcome         = "Sidste udfald"
	FieldDate                = "Dato"
	FieldComment             = "Kommentar"
	FieldDecisionID          = "Beslutnings ID"
	FieldThread              = "Tråd"
)

// DefaultAgendaType is used when a backlog item carries no agenda type.
const DefaultAgendaType = "beslutning"

// Placeholder stands in for a missing headline, description or outcome.
const Placeholder = "–"

// Field is one named text value of a record.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Record is a message-backed item: a backlog item, a decision or a rendered
// post. Field names are unique within a record.
type Record struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Title     string    `json:"title,omitempty"`
	Color     int       `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Fields    []Field   `json:"fields"`
}

// FieldValue returns the value of the named field.
func (r *Record) FieldValue(name string) (string, bool) {
	return FieldValue(r.Fields, name)
}

// FieldOr returns the value of the named field, or fallback when the field is
// missing or empty.
func (r *Record) FieldOr(name, fallback string) string {
	if v, ok := FieldValue(r.Fields, name); ok && v != "" {
		return v
	}
	return fallback
}

// Control parses the record's control block. It returns ErrNoControlBlock
// when the record is not a decision and a *ControlBlockError when the block
// cannot be parsed.
func (r *Record) Control() (*ControlBlock, error) {
	raw, ok := FieldValue(r.Fields, MetaFieldName)
	if !ok {
		return nil, ErrNoControlBlock
	}
	return ParseControlBlock(raw)
}

// ContentFields returns a copy of the record's fields without the control block.
func (r *Record) ContentFields() []Field {
	return WithoutControl(r.Fields)
}

// FieldValue looks up a field by name.
func FieldValue(fields []Field, name string) (string, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// WithoutControl returns a copy of fields with the control block removed.
func WithoutControl(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Name == MetaFieldName {
			continue
		}
		out = append(out, f)
	}
	return out
}

// WithControl returns a copy of fields where the control block field holds cb.
// An existing control block keeps its position; otherwise it is appended.
func WithControl(fields []Field, cb *ControlBlock) ([]Field, error) {
	raw, err := cb.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]Field, 0, len(fields)+1)
	replaced := false
	for _, f := range fields {
		if f.Name == MetaFieldName {
			if replaced {
				continue
			}
			f.Value = raw
			replaced = true
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Field{Name: MetaFieldName, Value: raw})
	}
	return out, nil
}

// SetField returns a copy of fields with name set to value, appending the
// field when it does not exist yet.
func SetField(fields []Field, name, value string) []Field {
	out := make([]Field, 0, len(fields)+1)
	found := false
	for _, f := range fields {
		if f.Name == name {
			f.Value = value
			found = true
		}
		out = append(out, f)
	}
	if !found {
		out = append(out, Field{Name: name, Value: value})
	}
	return out
}

// RemoveField returns a copy of fields without the named field.
func RemoveField(fields []Field, name string) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}

// EqualFields reports whether two field sets have the same names and values
// in the same order. Inline hints are presentation-only and ignored.
func EqualFields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Value != b[i].Value {
			return false
		}
	}
	return true
}

// ThreadChannelID is the channel holding the discussion thread attached to a record.
func ThreadChannelID(recordID string) string {
	return recordID + "/thread"
}
