package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/fixflow/llm"
	"github.com/BaSui01/fixflow/types"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	return New(Config{
		ProviderName: "test",
		APIKey:       "sk-test",
		BaseURL:      baseURL,
		DefaultModel: "gpt-4o",
	}, nil)
}

func TestCompletionRequestMapping(t *testing.T) {
	var got wireRequest
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(wireResponse{
			ID:    "resp-1",
			Model: got.Model,
			Choices: []wireChoice{{
				FinishReason: "stop",
				Message:      wireMessage{Role: "assistant", Content: "done"},
			}},
			Usage: &wireUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		})
	})

	p := newProvider(t, srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "be brief"},
			{Role: types.RoleUser, Content: "hi"},
		},
		Tools: []types.ToolSchema{
			{Name: "read_file", Description: "read", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
		Temperature: 0.2,
		MaxTokens:   100,
	})
	require.NoError(t, err)

	// Model defaults from config when the request names none.
	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
	assert.Equal(t, "read_file", got.Tools[0].Function.Name)

	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, "test", resp.Provider)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "done", resp.Choices[0].Message.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestCompletionDecodesToolCalls(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(wireResponse{
			Choices: []wireChoice{{
				FinishReason: "tool_calls",
				Message: wireMessage{
					Role: "assistant",
					ToolCalls: []wireToolCall{{
						ID:   "call-1",
						Type: "function",
						Function: wireFunction{
							Name:      "read_file",
							Arguments: json.RawMessage(`{"path":"a.go"}`),
						},
					}},
				},
			}},
		})
	})

	p := newProvider(t, srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "go"}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	calls := resp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.JSONEq(t, `{"path":"a.go"}`, string(calls[0].Arguments))
}

func TestCompletionMapsBackendErrors(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit reached","type":"requests"}}`))
	})

	p := newProvider(t, srv.URL)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "rate limit reached")
}

func TestCompletionConnectionErrorIsRetryable(t *testing.T) {
	srv := newBackend(t, func(http.ResponseWriter, *http.Request) {})
	url := srv.URL
	srv.Close()

	p := newProvider(t, url)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrBackendError, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/models", r.URL.Path)
			_, _ = w.Write([]byte(`{"data":[]}`))
		})

		status, err := newProvider(t, srv.URL).HealthCheck(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Healthy)
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		status, err := newProvider(t, srv.URL).HealthCheck(context.Background())
		require.Error(t, err)
		assert.False(t, status.Healthy)
	})
}
