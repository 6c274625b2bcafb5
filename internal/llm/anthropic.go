package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else. Do not wrap it in markdown fences."

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client   anthropic.Client
	settings Settings
}

// NewAnthropicClient creates a client for Anthropic models.
func NewAnthropicClient(s Settings) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithBaseURL(s.Provider.BaseURL),
		option.WithMaxRetries(0),
	}
	if s.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(s.Timeout))
	}
	for k, v := range s.Provider.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &AnthropicClient{
		client:   anthropic.NewClient(opts...),
		settings: s,
	}
}

// Complete sends prompt as a single user message. Anthropic has no JSON
// response mode, so the system prompt asks for JSON only.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (*Completion, error) {
	slog.Debug("sending prompt", "provider", c.settings.Provider.Kind, "model", c.settings.Provider.Model, "bytes", len(prompt))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.settings.Provider.Model),
		MaxTokens:   int64(c.settings.MaxTokens),
		Temperature: anthropic.Float(c.settings.Temperature),
		System:      []anthropic.TextBlockParam{{Text: jsonOnlyInstruction}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", c.settings.Provider.Kind, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%s returned no text content", c.settings.Provider.Kind)
	}

	return &Completion{
		Content: text.String(),
		Model:   string(msg.Model),
	}, nil
}
