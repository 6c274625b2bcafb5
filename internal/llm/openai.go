package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient talks to any provider that implements the OpenAI chat
// completions API: OpenAI itself, OpenRouter and Cerebras.
type OpenAIClient struct {
	client   openai.Client
	settings Settings
}

// NewOpenAIClient creates a client for an OpenAI-compatible provider.
// Transport-level retries are disabled; Generator owns retry policy.
func NewOpenAIClient(s Settings) *OpenAIClient {
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
	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		settings: s,
	}
}

// Complete requests a JSON-object reply for prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (*Completion, error) {
	slog.Debug("sending prompt", "provider", c.settings.Provider.Kind, "model", c.settings.Provider.Model, "bytes", len(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.settings.Provider.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(c.settings.MaxTokens)),
		Temperature: openai.Float(c.settings.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", c.settings.Provider.Kind, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", c.settings.Provider.Kind)
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}
