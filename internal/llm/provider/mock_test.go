package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_Queues(t *testing.T) {
	m := NewMockProvider("")
	boom := errors.New("boom")
	m.AddError(boom).AddText("first").AddText("second")

	ctx := context.Background()
	_, err := m.CreateCompletion(ctx, CompletionRequest{Model: "a"})
	assert.ErrorIs(t, err, boom)

	resp, err := m.CreateCompletion(ctx, CompletionRequest{Model: "b"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	resp, err = m.CreateCompletion(ctx, CompletionRequest{Model: "c"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	resp, err = m.CreateCompletion(ctx, CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Mock response", resp.Content)

	calls := m.CompletionCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, "a", calls[0].Model)
	assert.Equal(t, "mock", m.Name())
}

func TestMockProvider_Structured(t *testing.T) {
	m := NewMockProvider("advisor")
	m.AddStructuredJSON(`{"verdict":"ok"}`)

	resp, err := m.CreateStructured(context.Background(), StructuredRequest{SchemaName: "report"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"verdict":"ok"}`, string(resp.Data))
	assert.Len(t, m.StructuredCalls(), 1)

	m.Reset()
	assert.Empty(t, m.StructuredCalls())
}

func TestMockProvider_Hook(t *testing.T) {
	m := NewMockProvider("hooked")
	release := make(chan struct{})
	m.Hook = func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
		select {
		case <-release:
			return &CompletionResponse{Content: "released"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.CreateCompletion(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	resp, err := m.CreateCompletion(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "released", resp.Content)
}
