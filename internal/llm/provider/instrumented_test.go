package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	provider, model, operation string
	usage                      Usage
	err                        error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) ObserveBackendCall(provider, model, operation string, _ time.Duration, usage Usage, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{provider, model, operation, usage, err})
}

func TestInstrumentedProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider("mock")
	mock.AddCompletionResponse(&CompletionResponse{Content: "ok", Usage: Usage{TotalTokens: 9}})
	failure := errors.New("backend down")
	mock.AddError(failure)

	rec := &fakeRecorder{}
	p := WrapProvider(mock, rec)
	assert.Equal(t, "mock", p.Name())

	resp, err := p.CreateCompletion(context.Background(), CompletionRequest{Model: "flash", Temperature: Float(0.6)})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	_, err = p.CreateStructured(context.Background(), StructuredRequest{CompletionRequest: CompletionRequest{Model: "deep"}})
	assert.ErrorIs(t, err, failure)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, recordedCall{"mock", "flash", "completion", Usage{TotalTokens: 9}, nil}, rec.calls[0])
	assert.Equal(t, "structured", rec.calls[1].operation)
	assert.ErrorIs(t, rec.calls[1].err, failure)
}

func TestWrapProvider_Idempotent(t *testing.T) {
	mock := NewMockProvider("mock")
	wrapped := WrapProvider(mock, nil)
	assert.Same(t, wrapped, WrapProvider(wrapped, nil))
	assert.Same(t, mock, UnwrapProvider(wrapped))
	assert.Same(t, mock, UnwrapProvider(mock))

	_, err := wrapped.CreateCompletion(context.Background(), CompletionRequest{})
	assert.NoError(t, err)
}
