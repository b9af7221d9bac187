package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/hazel/internal/model"
)

// Request is a single chat completion request.
type Request struct {
	System      string
	User        []string
	Temperature float64
	MaxTokens   int64
}

// Chat is a hosted chat model. Implementations return the text of the first
// answer.
type Chat interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// LLM implements Transformer on top of a Chat backend.
type LLM struct {
	chat Chat
	now  func() time.Time
}

var _ Transformer = (*LLM)(nil)

// LLMOption configures an LLM.
type LLMOption func(*LLM)

// WithClock overrides the clock used for "today" in prompts.
func WithClock(now func() time.Time) LLMOption {
	return func(l *LLM) { l.now = now }
}

// NewLLM creates a Transformer backed by chat.
func NewLLM(chat Chat, opts ...LLMOption) *LLM {
	l := &LLM{chat: chat, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type wireField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireFields struct {
	EmbedFields []wireField `json:"embedFields"`
}

type normalizeReply struct {
	EmbedFields        []wireField    `json:"embedFields"`
	PostProcessChanges string         `json:"post_process_changes"`
	PostProcessedError model.FlexBool `json:"post_processed_error"`
}

type alignReply struct {
	ShouldRaiseObjection model.FlexBool `json:"should_raise_objection"`
	SuggestedRevision    *string        `json:"suggested_revision"`
}

func (l *LLM) Normalize(ctx context.Context, fields []model.Field) (*NormalizedResult, error) {
	payload, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	today := l.now().Format(model.DateLayout)
	text, err := l.chat.Complete(ctx, Request{
		System: NormalizePrompt(today),
		User:   []string{payload},
	})
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	var reply normalizeReply
	if err := decodeReply(text, &reply); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if len(reply.EmbedFields) == 0 {
		return &NormalizedResult{Fields: fields, Error: true}, nil
	}

	inline := make(map[string]bool, len(fields))
	for _, f := range fields {
		inline[f.Name] = f.Inline
	}
	out := make([]model.Field, 0, len(reply.EmbedFields))
	for _, f := range reply.EmbedFields {
		if f.Name == model.MetaFieldName {
			continue
		}
		out = append(out, model.Field{Name: f.Name, Value: f.Value, Inline: inline[f.Name]})
	}
	return &NormalizedResult{
		Fields:  out,
		Changes: reply.PostProcessChanges,
		Error:   bool(reply.PostProcessedError),
	}, nil
}

func (l *LLM) Align(ctx context.Context, fields []model.Field, vision, handbook string) (*AlignmentResult, error) {
	payload, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	text, err := l.chat.Complete(ctx, Request{
		System: alignPrompt,
		User: []string{
			"Vision:\n" + vision,
			"Håndbog:\n" + handbook,
			payload,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	var reply alignReply
	if err := decodeReply(text, &reply); err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	res := &AlignmentResult{Objection: bool(reply.ShouldRaiseObjection)}
	if reply.SuggestedRevision != nil {
		res.SuggestedRevision = strings.TrimSpace(*reply.SuggestedRevision)
	}
	return res, nil
}

func (l *LLM) Ask(ctx context.Context, question, archive string) (string, error) {
	text, err := l.chat.Complete(ctx, Request{
		System:      askPrompt,
		User:        []string{"Archive:\n" + archive, question},
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("ask: %w", ErrMalformed)
	}
	return text, nil
}

func encodeFields(fields []model.Field) (string, error) {
	w := wireFields{EmbedFields: make([]wireField, 0, len(fields))}
	for _, f := range fields {
		w.EmbedFields = append(w.EmbedFields, wireField{Name: f.Name, Value: f.Value})
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

// decodeReply parses a JSON answer, tolerating a surrounding markdown code fence.
func decodeReply(text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
