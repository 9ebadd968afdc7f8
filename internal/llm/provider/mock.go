package provider

import (
	"context"
	"encoding/json"
	"sync"
)

// MockProvider is a scripted provider for tests and offline runs. Queued
// errors take precedence over queued responses; when both queues are empty
// it answers with a canned reply. Safe for concurrent use.
type MockProvider struct {
	name string

	mu                  sync.Mutex
	completionResponses []*CompletionResponse
	structuredResponses []*StructuredResponse
	errors              []error

	// Hook, when set, answers every completion instead of the queues.
	Hook func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	completionCalls []CompletionRequest
	structuredCalls []StructuredRequest
}

// NewMockProvider creates a new mock provider
func NewMockProvider(name string) *MockProvider {
	if name == "" {
		name = "mock"
	}
	return &MockProvider{name: name}
}

func init() {
	RegisterFactory("mock", func(FactoryConfig) (Provider, error) {
		return NewMockProvider("mock"), nil
	})
}

// Name implements Provider
func (m *MockProvider) Name() string {
	return m.name
}

// CreateCompletion implements Provider
func (m *MockProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.completionCalls = append(m.completionCalls, req)
	hook := m.Hook
	if hook == nil {
		if err, ok := m.popError(); ok {
			m.mu.Unlock()
			return nil, err
		}
		if len(m.completionResponses) > 0 {
			resp := m.completionResponses[0]
			m.completionResponses = m.completionResponses[1:]
			m.mu.Unlock()
			return resp, nil
		}
	}
	m.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &CompletionResponse{
		Content:      "Mock response",
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// CreateStructured implements Provider
func (m *MockProvider) CreateStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structuredCalls = append(m.structuredCalls, req)

	if err, ok := m.popError(); ok {
		return nil, err
	}
	if len(m.structuredResponses) > 0 {
		resp := m.structuredResponses[0]
		m.structuredResponses = m.structuredResponses[1:]
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _ := json.Marshal(map[string]any{"message": "Mock structured response"})
	return &StructuredResponse{
		Data: data,
		CompletionResponse: CompletionResponse{
			Content:      string(data),
			FinishReason: "stop",
		},
	}, nil
}

// popError must be called with mu held.
func (m *MockProvider) popError() (error, bool) {
	if len(m.errors) == 0 {
		return nil, false
	}
	err := m.errors[0]
	m.errors = m.errors[1:]
	return err, err != nil
}

// AddCompletionResponse queues a completion reply
func (m *MockProvider) AddCompletionResponse(resp *CompletionResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionResponses = append(m.completionResponses, resp)
	return m
}

// AddText queues a plain completion reply with the given content
func (m *MockProvider) AddText(content string) *MockProvider {
	return m.AddCompletionResponse(&CompletionResponse{Content: content, FinishReason: "stop"})
}

// AddStructuredResponse queues a structured reply
func (m *MockProvider) AddStructuredResponse(resp *StructuredResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structuredResponses = append(m.structuredResponses, resp)
	return m
}

// AddStructuredJSON queues a structured reply carrying raw JSON
func (m *MockProvider) AddStructuredJSON(raw string) *MockProvider {
	return m.AddStructuredResponse(&StructuredResponse{
		Data:               json.RawMessage(raw),
		CompletionResponse: CompletionResponse{Content: raw, FinishReason: "stop"},
	})
}

// AddError queues an error. A nil entry consumes a slot without failing.
func (m *MockProvider) AddError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
	return m
}

// CompletionCalls returns a copy of the recorded completion requests
func (m *MockProvider) CompletionCalls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.completionCalls...)
}

// StructuredCalls returns a copy of the recorded structured requests
func (m *MockProvider) StructuredCalls() []StructuredRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StructuredRequest(nil), m.structuredCalls...)
}

// Reset clears queues and recorded calls
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionResponses = nil
	m.structuredResponses = nil
	m.errors = nil
	m.completionCalls = nil
	m.structuredCalls = nil
}
