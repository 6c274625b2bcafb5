package llm

import (
	"fmt"
	"strings"
)

// ProviderKind names a model provider.
type ProviderKind string

const (
	ProviderOpenAI     ProviderKind = "openai"
	ProviderOpenRouter ProviderKind = "openrouter"
	ProviderCerebras   ProviderKind = "cerebras"
	ProviderAnthropic  ProviderKind = "anthropic"
)

// Provider describes where and how to reach a model.
type Provider struct {
	Kind    ProviderKind
	BaseURL string
	Model   string
	Headers map[string]string
}

// OpenAICompatible reports whether the provider speaks the OpenAI chat
// completions protocol.
func (p Provider) OpenAICompatible() bool {
	return p.Kind != ProviderAnthropic
}

var providers = map[ProviderKind]Provider{
	ProviderOpenAI: {
		Kind:    ProviderOpenAI,
		BaseURL: "https://api.openai.com/v1/",
		Model:   "gpt-4o",
	},
	ProviderOpenRouter: {
		Kind:    ProviderOpenRouter,
		BaseURL: "https://openrouter.ai/api/v1/",
		Model:   "google/gemini-2.0-flash-exp:free",
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/cline/cline",
			"X-Title":      "Cline Agent",
		},
	},
	ProviderCerebras: {
		Kind:    ProviderCerebras,
		BaseURL: "https://api.cerebras.ai/v1/",
		Model:   "llama3.1-8b",
	},
	ProviderAnthropic: {
		Kind:    ProviderAnthropic,
		BaseURL: "https://api.anthropic.com/",
		Model:   "claude-sonnet-4-20250514",
	},
}

// keyPrefixes maps credential prefixes to providers. Longer prefixes first,
// since every Anthropic and OpenRouter key also starts with "sk-".
var keyPrefixes = []struct {
	prefix string
	kind   ProviderKind
}{
	{"sk-ant-", ProviderAnthropic},
	{"sk-or-", ProviderOpenRouter},
	{"csk-", ProviderCerebras},
}

// ResolveProvider picks the provider for a credential. A non-empty name
// selects the provider explicitly; otherwise the credential's prefix decides,
// falling back to OpenAI.
func ResolveProvider(apiKey, name string) (Provider, error) {
	if name != "" {
		p, ok := providers[ProviderKind(strings.ToLower(name))]
		if !ok {
			return Provider{}, fmt.Errorf("unknown model provider %q", name)
		}
		return p, nil
	}

	for _, kp := range keyPrefixes {
		if strings.HasPrefix(apiKey, kp.prefix) {
			return providers[kp.kind], nil
		}
	}
	return providers[ProviderOpenAI], nil
}

// WithOverrides returns a copy of p with a non-empty model or base URL
// replacing the provider defaults.
func (p Provider) WithOverrides(model, baseURL string) Provider {
	if model != "" {
		p.Model = model
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		p.BaseURL = baseURL
	}
	return p
}
