// Package anthropic implements transform.Chat with the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alfredjeanlab/hazel/internal/transform"
)

// Options configure the Anthropic backend.
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
	BaseURL   string
}

// Chat sends requests to the Messages API.
type Chat struct {
	client *anthropic.Client
	opts   Options
}

var _ transform.Chat = (*Chat)(nil)

// New creates a Chat. The API key falls back to ANTHROPIC_API_KEY.
func New(optFns ...func(o *Options)) *Chat {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Chat{client: &client, opts: opts}
}

func (c *Chat) Complete(ctx context.Context, req transform.Request) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.User))
	for _, u := range req.User {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(u)))
	}

	maxTokens := c.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text in response: %w", transform.ErrMalformed)
	}
	return sb.String(), nil
}
