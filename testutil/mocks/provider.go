// Package mocks provides test doubles for the llm.Provider boundary.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/fixflow/llm"
	"github.com/BaSui01/fixflow/types"
)

// ScriptedTurn is one canned backend turn: either a response or an error.
type ScriptedTurn struct {
	Content   string
	ToolCalls []types.ToolCall
	Err       error
}

// ProviderCall records one Completion invocation.
type ProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// MockProvider is a scripted llm.Provider. With a script, turns are consumed
// in order and the last one repeats; without one, a fixed response is
// returned. All calls are recorded for assertions.
type MockProvider struct {
	mu sync.RWMutex

	response         string
	toolCalls        []types.ToolCall
	err              error
	script           []ScriptedTurn
	promptTokens     int
	completionTokens int

	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls     []ProviderCall
	callCount int
}

// NewMockProvider creates a provider returning a fixed plain response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		response:         "mock response",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithResponse sets the fixed response content.
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithToolCalls sets tool calls on the fixed response.
func (m *MockProvider) WithToolCalls(calls []types.ToolCall) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = calls
	return m
}

// WithError makes every Completion fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithScript sets the turn script. The last turn repeats once the script is
// exhausted.
func (m *MockProvider) WithScript(turns ...ScriptedTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = turns
	return m
}

// WithTokenUsage sets the reported usage. Zero values make the provider
// report no usage at all, forcing callers onto local estimation.
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithCompletionFunc overrides Completion entirely.
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return "mock" }

// HealthCheck implements llm.Provider.
func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: 10 * time.Millisecond}, nil
}

// Completion implements llm.Provider.
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++

	if m.err != nil {
		m.calls = append(m.calls, ProviderCall{Request: req, Error: m.err})
		return nil, m.err
	}

	if m.completionFunc != nil {
		resp, err := m.completionFunc(ctx, req)
		m.calls = append(m.calls, ProviderCall{Request: req, Response: resp, Error: err})
		return resp, err
	}

	content := m.response
	toolCalls := m.toolCalls
	if len(m.script) > 0 {
		idx := m.callCount - 1
		if idx >= len(m.script) {
			idx = len(m.script) - 1
		}
		turn := m.script[idx]
		if turn.Err != nil {
			m.calls = append(m.calls, ProviderCall{Request: req, Error: turn.Err})
			return nil, turn.Err
		}
		content = turn.Content
		toolCalls = turn.ToolCalls
	}

	finish := "stop"
	if len(toolCalls) > 0 {
		finish = "tool_calls"
	}
	resp := &llm.ChatResponse{
		ID:       "mock-response-id",
		Provider: "mock",
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: finish,
			Message: types.Message{
				Role:      types.RoleAssistant,
				Content:   content,
				ToolCalls: toolCalls,
			},
		}},
		Usage: llm.ChatUsage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
			TotalTokens:      m.promptTokens + m.completionTokens,
		},
		CreatedAt: time.Now(),
	}

	m.calls = append(m.calls, ProviderCall{Request: req, Response: resp})
	return resp, nil
}

// Calls returns a copy of all recorded calls.
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ProviderCall(nil), m.calls...)
}

// CallCount returns the number of Completion invocations.
func (m *MockProvider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount
}

// Reset clears the call log and error state.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
	m.err = nil
}

var _ llm.Provider = (*MockProvider)(nil)
