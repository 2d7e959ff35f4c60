package providers

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/taxorank/llm"
	"github.com/c360studio/taxorank/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{name: "empty uses default", baseURL: "", want: "https://api.anthropic.com/v1/messages"},
		{name: "custom base URL", baseURL: "https://custom.api.com", want: "https://custom.api.com/v1/messages"},
		{name: "trailing slash handled", baseURL: "https://api.anthropic.com/", want: "https://api.anthropic.com/v1/messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestAnthropicProvider_BuildRequestBody(t *testing.T) {
	p := &AnthropicProvider{}

	messages := []llm.Message{
		{Role: "system", Content: "You are a taxonomist."},
		{Role: "user", Content: "Is Vehicle a taxonomy root?"},
	}

	body, err := p.BuildRequestBody("claude-haiku", messages, model.Sampling{Temperature: 0.9, TopP: 0.9, PresencePenalty: 1, FrequencyPenalty: 1}, 5)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "You are a taxonomist.", req["system"])
	assert.Equal(t, "claude-haiku", req["model"])
	assert.Equal(t, float64(5), req["max_tokens"])
	assert.Equal(t, 0.9, req["temperature"])
	assert.Equal(t, 0.9, req["top_p"])
	assert.NotContains(t, req, "presence_penalty")
	assert.NotContains(t, req, "frequency_penalty")
	assert.NotContains(t, string(body), `"role":"system"`)
}

func TestAnthropicProvider_BuildRequestBody_ClampsTemperature(t *testing.T) {
	p := &AnthropicProvider{}

	body, err := p.BuildRequestBody("claude-haiku", []llm.Message{{Role: "user", Content: "Hi"}}, model.Sampling{Temperature: 1.3}, 0)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"temperature":1`)
	assert.Contains(t, string(body), `"max_tokens":4096`)
}

func TestAnthropicProvider_BuildRequestBody_NoSampling(t *testing.T) {
	p := &AnthropicProvider{}

	body, err := p.BuildRequestBody("claude-haiku", []llm.Message{{Role: "user", Content: "Hi"}}, model.Sampling{}, 0)
	require.NoError(t, err)

	assert.NotContains(t, string(body), `"temperature"`)
	assert.NotContains(t, string(body), `"top_p"`)
}

func TestAnthropicProvider_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	responseBody := []byte(`{
		"id": "msg_123",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "text", "text": "Yes, "},
			{"type": "text", "text": "it is."}
		],
		"model": "claude-haiku-3-5-20241022",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 15, "output_tokens": 8}
	}`)

	resp, err := p.ParseResponse(responseBody, "claude-haiku")
	require.NoError(t, err)

	assert.Equal(t, "Yes, it is.", resp.Content)
	assert.Equal(t, "claude-haiku-3-5-20241022", resp.Model)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, llm.TokenUsage{PromptTokens: 15, CompletionTokens: 8, TotalTokens: 23}, resp.Usage)
}

func TestAnthropicProvider_ParseResponse_Invalid(t *testing.T) {
	_, err := (&AnthropicProvider{}).ParseResponse([]byte(`not json`), "claude-haiku")
	assert.Error(t, err)
}
