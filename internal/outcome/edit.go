package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/hazel/internal/model"
)

// Method is an admin edit operation.
type Method string

const (
	MethodInsert Method = "insert"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
)

// ParseMethod validates an edit method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodInsert, MethodUpdate, MethodDelete:
		return m, nil
	}
	return "", fmt.Errorf("%w: method must be insert, update or delete, got %q", ErrInvalid, s)
}

// EditField inserts, updates or deletes one visible field of a decision.
// The control block is edited through EditControl.
func (s *Service) EditField(ctx context.Context, id string, method Method, name, value string) (*model.Record, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == model.MetaFieldName {
		return nil, fmt.Errorf("%w: field name %q cannot be edited", ErrInvalid, name)
	}
	rec, err := s.Decision(ctx, id)
	if err != nil {
		return nil, err
	}
	_, exists := rec.FieldValue(name)

	var fields []model.Field
	switch method {
	case MethodInsert:
		if exists {
			return nil, fmt.Errorf("%w: field %q already exists", ErrInvalid, name)
		}
		fields = insertBeforeControl(rec.Fields, model.Field{Name: name, Value: value})
	case MethodUpdate:
		if !exists {
			return nil, fmt.Errorf("%w: field %q does not exist", ErrInvalid, name)
		}
		fields = model.SetField(rec.Fields, name, value)
	case MethodDelete:
		if !exists {
			return nil, fmt.Errorf("%w: field %q does not exist", ErrInvalid, name)
		}
		fields = model.RemoveField(rec.Fields, name)
	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalid, method)
	}
	return s.replace(ctx, rec, fields, "field", name, method)
}

// EditControl inserts, updates or deletes one key of a decision's control
// block. Values are stored as JSON strings. An edit that would leave the
// block unreadable by the lanes is refused.
func (s *Service) EditControl(ctx context.Context, id string, method Method, key, value string) (*model.Record, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalid)
	}
	rec, err := s.Decision(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, ok := rec.FieldValue(model.MetaFieldName)
	if !ok {
		return nil, fmt.Errorf("decision %s: %w", id, model.ErrNoControlBlock)
	}
	var block map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &block); err != nil {
		return nil, fmt.Errorf("decision %s: %w", id, &model.ControlBlockError{Raw: raw, Err: err})
	}
	if block == nil {
		block = make(map[string]json.RawMessage)
	}

	cur, exists := block[key]
	switch method {
	case MethodInsert:
		if exists && !blank(cur) {
			return nil, fmt.Errorf("%w: key %q already exists", ErrInvalid, key)
		}
		block[key] = jsonString(value)
	case MethodUpdate:
		if !exists {
			return nil, fmt.Errorf("%w: key %q does not exist", ErrInvalid, key)
		}
		block[key] = jsonString(value)
	case MethodDelete:
		if !exists {
			return nil, fmt.Errorf("%w: key %q does not exist", ErrInvalid, key)
		}
		delete(block, key)
	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalid, method)
	}

	encoded, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("encode control block: %w", err)
	}
	if _, err := model.ParseControlBlock(string(encoded)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	fields := model.SetField(rec.Fields, model.MetaFieldName, string(encoded))
	return s.replace(ctx, rec, fields, "meta", key, method)
}

func (s *Service) replace(ctx context.Context, rec *model.Record, fields []model.Field, kind, name string, method Method) (*model.Record, error) {
	if err := s.store.ReplaceFields(ctx, rec.ID, fields); err != nil {
		return nil, fmt.Errorf("replace fields of %s: %w", rec.ID, err)
	}
	rec.Fields = fields
	s.logger.Info("decision edited", "record_id", rec.ID, "kind", kind, "name", name, "method", string(method))
	return rec, nil
}

// insertBeforeControl keeps the control block as the last field.
func insertBeforeControl(fields []model.Field, f model.Field) []model.Field {
	out := make([]model.Field, 0, len(fields)+1)
	inserted := false
	for _, cur := range fields {
		if cur.Name == model.MetaFieldName && !inserted {
			out = append(out, f)
			inserted = true
		}
		out = append(out, cur)
	}
	if !inserted {
		out = append(out, f)
	}
	return out
}

func blank(v json.RawMessage) bool {
	s := strings.TrimSpace(string(v))
	return s == "null" || s == `""`
}

func jsonString(v string) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
