// Package openai implements transform.Chat with the OpenAI Chat Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/alfredjeanlab/hazel/internal/transform"
)

// Options configure the OpenAI backend.
type Options struct {
	Model   string
	APIKey  string
	BaseURL string
}

// Chat sends requests to the Chat Completions API.
type Chat struct {
	client *openai.Client
	opts   Options
}

var _ transform.Chat = (*Chat)(nil)

// New creates a Chat. The API key falls back to OPENAI_API_KEY.
func New(optFns ...func(o *Options)) *Chat {
	opts := Options{Model: openai.ChatModelGPT4oMini}
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
	client := openai.NewClient(clientOpts...)
	return &Chat{client: &client, opts: opts}
}

func (c *Chat) Complete(ctx context.Context, req transform.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.User)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, u := range req.User {
		messages = append(messages, openai.UserMessage(u))
	}

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       c.opts.Model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned: %w", transform.ErrMalformed)
	}
	return resp.Choices[0].Message.Content, nil
}
