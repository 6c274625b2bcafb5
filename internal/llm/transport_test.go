package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proposal = `{"files":[{"path":"src/a.js","content":"export const a = 1;\n"}]}`

func TestOpenAIClientComplete(t *testing.T) {
	var body map[string]any
	var headers http.Header

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "google/gemini-2.0-flash-exp:free",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": proposal,
				},
			}},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p, err := ResolveProvider("sk-or-test", "")
	require.NoError(t, err)
	client := NewOpenAIClient(Settings{
		APIKey:      "sk-or-test",
		Provider:    p.WithOverrides("", server.URL),
		MaxTokens:   4000,
		Temperature: 0.3,
	})

	got, err := client.Complete(context.Background(), "fix the bug")
	require.NoError(t, err)
	assert.Equal(t, proposal, got.Content)

	assert.Equal(t, "Bearer sk-or-test", headers.Get("Authorization"))
	assert.Equal(t, "https://github.com/cline/cline", headers.Get("HTTP-Referer"))
	assert.Equal(t, "Cline Agent", headers.Get("X-Title"))

	assert.Equal(t, "google/gemini-2.0-flash-exp:free", body["model"])
	assert.Equal(t, float64(4000), body["max_tokens"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "fix the bug", msg["content"])
}

func TestOpenAIClientServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	t.Cleanup(server.Close)

	p, _ := ResolveProvider("sk-test", "")
	client := NewOpenAIClient(Settings{APIKey: "sk-test", Provider: p.WithOverrides("", server.URL), MaxTokens: 10})

	_, err := client.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "transport must not retry on its own")
}

func TestAnthropicClientComplete(t *testing.T) {
	var body map[string]any
	var apiKey string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-Api-Key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-sonnet-4-20250514",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content": []map[string]any{
				{"type": "text", "text": proposal},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p, err := ResolveProvider("sk-ant-test", "")
	require.NoError(t, err)
	client := NewAnthropicClient(Settings{
		APIKey:      "sk-ant-test",
		Provider:    p.WithOverrides("", server.URL),
		MaxTokens:   4000,
		Temperature: 0.3,
	})

	got, err := client.Complete(context.Background(), "fix the bug")
	require.NoError(t, err)
	assert.Equal(t, proposal, got.Content)
	assert.Equal(t, "claude-sonnet-4-20250514", got.Model)

	assert.Equal(t, "sk-ant-test", apiKey)
	assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
	assert.Equal(t, float64(4000), body["max_tokens"])
	assert.NotEmpty(t, body["system"])
}
