// Package transform is the port to the hosted text model. The lanes only see
// the Transformer interface; backends live in the openai and anthropic
// subpackages and plug in through Chat.
package transform

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/hazel/internal/model"
)

var (
	// ErrMalformed is returned when model output cannot be parsed.
	ErrMalformed = errors.New("malformed model output")
	// ErrDisabled is returned by Disabled.
	ErrDisabled = errors.New("text transform is not configured")
)

// NormalizedResult is the outcome of a normalization call.
type NormalizedResult struct {
	Fields  []model.Field
	Changes string
	// Error is set when the model itself reports that it could not process
	// the input. The lane treats it like a failed call.
	Error bool
}

// AlignmentResult is the outcome of an alignment check.
type AlignmentResult struct {
	Objection         bool
	SuggestedRevision string
}

// Transformer performs the three model-backed operations.
type Transformer interface {
	// Normalize fixes typos and resolves free-form follow-up dates.
	Normalize(ctx context.Context, fields []model.Field) (*NormalizedResult, error)
	// Align checks a decision against the vision and handbook archives.
	Align(ctx context.Context, fields []model.Field, vision, handbook string) (*AlignmentResult, error)
	// Ask answers a member question from an archive.
	Ask(ctx context.Context, question, archive string) (string, error)
}

// Disabled is the Transformer used when no provider is configured.
type Disabled struct{}

var _ Transformer = Disabled{}

func (Disabled) Normalize(context.Context, []model.Field) (*NormalizedResult, error) {
	return nil, ErrDisabled
}

func (Disabled) Align(context.Context, []model.Field, string, string) (*AlignmentResult, error) {
	return nil, ErrDisabled
}

func (Disabled) Ask(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}
