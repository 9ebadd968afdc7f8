// Package provider adapts generative backends (Gemini, OpenAI-compatible
// endpoints, Amazon Bedrock) to one completion interface.
package provider

import (
	"context"
	"encoding/json"
	"net/http"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// CreateCompletion creates a completion (unstructured text response)
	CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)

	// CreateStructured creates a JSON response shaped by a schema
	CreateStructured(ctx context.Context, request StructuredRequest) (*StructuredResponse, error)

	// Name returns the provider name (e.g., "gemini", "openai")
	Name() string
}

// Message roles
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleModel  = "model"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`    // "system", "user", "model"
	Content string `json:"content"` // The message content
}

// CompletionRequest represents a completion request
type CompletionRequest struct {
	// Messages is the conversation history, oldest first
	Messages []Message `json:"messages"`

	// Model is the model to use (e.g., "gemini-3-flash-preview")
	Model string `json:"model,omitempty"`

	// Temperature controls randomness. Nil leaves the backend default.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// ResponseMIMEType asks the backend for a specific output type ("text/plain")
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// FinishReason explains why generation stopped
	FinishReason string `json:"finish_reason"`

	// Usage contains token usage reported by the backend
	Usage Usage `json:"usage"`

	// Raw is the raw provider response for debugging
	Raw any `json:"-"`
}

// StructuredRequest represents a request for structured output
type StructuredRequest struct {
	CompletionRequest

	// Schema describes the expected JSON document
	Schema *Schema `json:"schema"`

	// SchemaName labels the schema for backends that require one
	SchemaName string `json:"schema_name,omitempty"`
}

// StructuredResponse represents a structured response
type StructuredResponse struct {
	// Data is the JSON document produced by the model
	Data json.RawMessage `json:"data"`

	CompletionResponse
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Float returns a pointer to v, for optional request fields.
func Float(v float64) *float64 { return &v }

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider      string `json:"provider"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Type          string `json:"type,omitempty"`
	StatusCode    int    `json:"status_code,omitempty"`
	IsRetryable   bool   `json:"is_retryable"`
	OriginalError error  `json:"-"`
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return e.Provider + " error: " + e.Message
}

// Unwrap returns the original error
func (e *ProviderError) Unwrap() error {
	return e.OriginalError
}

// HTTPStatus exposes the status code to the retry policy.
func (e *ProviderError) HTTPStatus() int {
	return e.StatusCode
}

// Common error codes
const (
	ErrorCodeInvalidRequest  = "invalid_request"
	ErrorCodeAuthentication  = "authentication_error"
	ErrorCodeRateLimit       = "rate_limit_exceeded"
	ErrorCodeServerError     = "server_error"
	ErrorCodeUnavailable     = "service_unavailable"
	ErrorCodeTimeout         = "timeout"
	ErrorCodeModelNotFound   = "model_not_found"
	ErrorCodeContentFiltered = "content_filtered"
	ErrorCodeEmptyResponse   = "empty_response"
	ErrorCodeUnknown         = "unknown_error"
)

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, original error) *ProviderError {
	return &ProviderError{
		Provider:      provider,
		Code:          code,
		Message:       message,
		OriginalError: original,
		IsRetryable:   isRetryableError(code),
	}
}

// NewStatusError creates a provider error from an HTTP status.
func NewStatusError(provider string, status int, message string, original error) *ProviderError {
	code := codeForStatus(status)
	return &ProviderError{
		Provider:      provider,
		Code:          code,
		Message:       message,
		StatusCode:    status,
		IsRetryable:   isRetryableError(code),
		OriginalError: original,
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorCodeAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorCodeRateLimit
	case status == http.StatusBadRequest:
		return ErrorCodeInvalidRequest
	case status == http.StatusNotFound:
		return ErrorCodeModelNotFound
	case status == http.StatusServiceUnavailable:
		return ErrorCodeUnavailable
	case status == http.StatusGatewayTimeout:
		return ErrorCodeTimeout
	case status >= 500:
		return ErrorCodeServerError
	default:
		return ErrorCodeUnknown
	}
}

// isRetryableError determines if an error code is retryable
func isRetryableError(code string) bool {
	switch code {
	case ErrorCodeServerError, ErrorCodeUnavailable, ErrorCodeTimeout:
		return true
	default:
		return false
	}
}
