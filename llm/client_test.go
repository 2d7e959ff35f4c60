package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/taxorank/llm"
	_ "github.com/c360studio/taxorank/llm/providers"
	"github.com/c360studio/taxorank/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatResponse(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model": "test-model",
		"choices": []map[string]any{
			{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18},
	})
}

func singleEndpointRegistry(url string) *model.Registry {
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityVerify: {
				Preferred: []string{"test-model"},
				Sampling:  model.Sampling{Temperature: 0.9, TopP: 0.9},
			},
		},
		map[string]*model.EndpointConfig{
			"test-model": {Provider: "ollama", URL: url, Model: "test-model"},
		},
	)
}

func fastRetry(attempts int) llm.ClientOption {
	return llm.WithRetryConfig(llm.RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.5,
		MaxBackoff:        10 * time.Millisecond,
	})
}

var verifyRequest = llm.Request{
	Capability: "verify",
	Messages:   []llm.Message{{Role: "user", Content: "Is Vehicle a taxonomy root?"}},
	MaxTokens:  5,
}

func TestClient_Complete_Success(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		chatResponse(w, "yes")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL))

	resp, err := client.Complete(context.Background(), verifyRequest)
	require.NoError(t, err)
	assert.Equal(t, "yes", resp.Content)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.NotEmpty(t, resp.RequestID)

	assert.Equal(t, 0.9, body["temperature"])
	assert.Equal(t, float64(5), body["max_tokens"])
}

func TestClient_Complete_SamplingOverride(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		chatResponse(w, "yes")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL))

	req := verifyRequest
	req.Sampling = &model.Sampling{Temperature: 0.1}
	_, err := client.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0.1, body["temperature"])
	assert.NotContains(t, body, "top_p")
}

func TestClient_Complete_RetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service temporarily unavailable"))
			return
		}
		chatResponse(w, "Success after retries")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), fastRetry(3))

	resp, err := client.Complete(context.Background(), verifyRequest)
	require.NoError(t, err)
	assert.Equal(t, "Success after retries", resp.Content)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Complete_NoRetryOnFatalError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Invalid API key"))
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), fastRetry(3))

	_, err := client.Complete(context.Background(), verifyRequest)
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Equal(t, "fatal", llm.ErrorClass(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Complete_Fallback(t *testing.T) {
	var primaryAttempts, fallbackAttempts atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryAttempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackAttempts.Add(1)
		chatResponse(w, "From fallback")
	}))
	defer fallback.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityGenerate: {
				Preferred: []string{"primary"},
				Fallback:  []string{"missing", "fallback"},
			},
		},
		map[string]*model.EndpointConfig{
			"primary":  {Provider: "ollama", URL: primary.URL, Model: "primary-model"},
			"fallback": {Provider: "openai", URL: fallback.URL, Model: "fallback-model"},
		},
	)

	client := llm.NewClient(registry, fastRetry(2))

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "generate",
		Messages:   []llm.Message{{Role: "user", Content: "List subconcepts"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "From fallback", resp.Content)
	assert.Equal(t, int32(2), primaryAttempts.Load())
	assert.Equal(t, int32(1), fallbackAttempts.Load())

	health := registry.GetEndpointHealth("primary")
	require.NotNil(t, health)
	assert.Equal(t, 1, health.FailureCount)
}

func TestClient_Complete_AllEndpointsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), fastRetry(2))

	_, err := client.Complete(context.Background(), verifyRequest)
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
	assert.Contains(t, err.Error(), "all endpoints failed")
}

func TestClient_Complete_RateLimitRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatResponse(w, "Success")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), fastRetry(3))

	resp, err := client.Complete(context.Background(), verifyRequest)
	require.NoError(t, err)
	assert.Equal(t, "Success", resp.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_Complete_ClientSideRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		chatResponse(w, "yes")
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL), llm.WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Complete(context.Background(), verifyRequest)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := llm.NewClient(singleEndpointRegistry(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, verifyRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestClient_Complete_ValidationErrors(t *testing.T) {
	client := llm.NewClient(model.NewDefaultRegistry())

	tests := []struct {
		name    string
		req     llm.Request
		wantErr string
	}{
		{
			name:    "empty capability",
			req:     llm.Request{Messages: []llm.Message{{Role: "user", Content: "hi"}}},
			wantErr: "capability is required",
		},
		{
			name:    "no messages",
			req:     llm.Request{Capability: "verify"},
			wantErr: "at least one message is required",
		},
		{
			name:    "unknown capability",
			req:     llm.Request{Capability: "planning", Messages: []llm.Message{{Role: "user", Content: "hi"}}},
			wantErr: "unknown capability",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Complete(context.Background(), tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("call: %w", context.Canceled), "canceled"},
		{llm.NewFatalError(errors.New("401")), "fatal"},
		{llm.NewTransientError(errors.New("503")), "transient"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, llm.ErrorClass(tt.err))
	}
}
