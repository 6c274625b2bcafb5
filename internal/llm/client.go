package llm

import (
	"errors"
	"time"

	"github.com/alanmeadows/autofix/internal/config"
)

// ErrNoAPIKey is returned when no model credential is configured.
var ErrNoAPIKey = errors.New("no model API key configured")

// Settings are the request parameters shared by every transport.
type Settings struct {
	APIKey      string
	Provider    Provider
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// SettingsFromConfig resolves the provider once, from the configured
// credential and overrides.
func SettingsFromConfig(cfg config.ModelConfig) (Settings, error) {
	if cfg.APIKey == "" {
		return Settings{}, ErrNoAPIKey
	}
	p, err := ResolveProvider(cfg.APIKey, cfg.Provider)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		APIKey:      cfg.APIKey,
		Provider:    p.WithOverrides(cfg.Model, cfg.BaseURL),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.ParseTimeout(),
	}, nil
}

// NewClient returns the transport for the resolved provider.
func NewClient(s Settings) Client {
	if s.Provider.OpenAICompatible() {
		return NewOpenAIClient(s)
	}
	return NewAnthropicClient(s)
}
