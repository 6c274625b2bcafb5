package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/autofix/internal/config"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		key       string
		wantKind  ProviderKind
		wantModel string
		wantBase  string
	}{
		{"sk-or-v1-abc", ProviderOpenRouter, "google/gemini-2.0-flash-exp:free", "https://openrouter.ai/api/v1/"},
		{"csk-123", ProviderCerebras, "llama3.1-8b", "https://api.cerebras.ai/v1/"},
		{"sk-ant-api03-xyz", ProviderAnthropic, "claude-sonnet-4-20250514", "https://api.anthropic.com/"},
		{"sk-proj-123", ProviderOpenAI, "gpt-4o", "https://api.openai.com/v1/"},
		{"anything-else", ProviderOpenAI, "gpt-4o", "https://api.openai.com/v1/"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p, err := ResolveProvider(tt.key, "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, p.Kind)
			assert.Equal(t, tt.wantModel, p.Model)
			assert.Equal(t, tt.wantBase, p.BaseURL)
		})
	}
}

func TestResolveProviderOpenRouterHeaders(t *testing.T) {
	p, err := ResolveProvider("sk-or-x", "")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/cline/cline", p.Headers["HTTP-Referer"])
	assert.Equal(t, "Cline Agent", p.Headers["X-Title"])
}

func TestResolveProviderExplicitName(t *testing.T) {
	p, err := ResolveProvider("sk-or-x", "Cerebras")
	require.NoError(t, err)
	assert.Equal(t, ProviderCerebras, p.Kind)

	_, err = ResolveProvider("sk-x", "mystery")
	assert.Error(t, err)
}

func TestWithOverrides(t *testing.T) {
	p := providers[ProviderOpenAI].WithOverrides("gpt-4o-mini", "http://localhost:8080/v1")
	assert.Equal(t, "gpt-4o-mini", p.Model)
	assert.Equal(t, "http://localhost:8080/v1/", p.BaseURL)

	same := providers[ProviderOpenAI].WithOverrides("", "")
	assert.Equal(t, providers[ProviderOpenAI], same)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Model
	_, err := SettingsFromConfig(cfg)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	cfg.APIKey = "csk-abc"
	cfg.Model = "llama-custom"
	s, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderCerebras, s.Provider.Kind)
	assert.Equal(t, "llama-custom", s.Provider.Model)
	assert.Equal(t, 4000, s.MaxTokens)
	assert.InDelta(t, 0.3, s.Temperature, 1e-9)
	assert.Equal(t, 5*time.Minute, s.Timeout)

	_, isOpenAI := NewClient(s).(*OpenAIClient)
	assert.True(t, isOpenAI)

	cfg.APIKey = "sk-ant-abc"
	cfg.Model = ""
	s, err = SettingsFromConfig(cfg)
	require.NoError(t, err)
	_, isAnthropic := NewClient(s).(*AnthropicClient)
	assert.True(t, isAnthropic)
}
