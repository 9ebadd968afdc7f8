package provider

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ecoai/sentinel/internal/observability"
)

// Recorder receives one observation per backend call. The Prometheus
// metrics in pkg/observability satisfy it.
type Recorder interface {
	ObserveBackendCall(provider, model, operation string, duration time.Duration, usage Usage, err error)
}

// InstrumentedProvider wraps a Provider with tracing and call metrics.
// Every call gets a span carrying the model, temperature and token usage.
type InstrumentedProvider struct {
	provider Provider
	recorder Recorder
}

// NewInstrumentedProvider wraps provider. A nil recorder records spans only.
func NewInstrumentedProvider(provider Provider, recorder Recorder) *InstrumentedProvider {
	return &InstrumentedProvider{provider: provider, recorder: recorder}
}

// CreateCompletion creates a completion with instrumentation
func (p *InstrumentedProvider) CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	ctx, span := p.startSpan(ctx, "completion", request)
	defer span.End()

	start := time.Now()
	response, err := p.provider.CreateCompletion(ctx, request)

	var usage Usage
	if response != nil {
		usage = response.Usage
		span.SetAttributes(attribute.String("llm.finish_reason", response.FinishReason))
	}
	p.finish(span, "completion", request.Model, time.Since(start), usage, err)
	if err != nil {
		return nil, err
	}
	return response, nil
}

// CreateStructured creates a structured response with instrumentation
func (p *InstrumentedProvider) CreateStructured(ctx context.Context, request StructuredRequest) (*StructuredResponse, error) {
	ctx, span := p.startSpan(ctx, "structured", request.CompletionRequest)
	span.SetAttributes(attribute.String("llm.schema_name", request.SchemaName))
	defer span.End()

	start := time.Now()
	response, err := p.provider.CreateStructured(ctx, request)

	var usage Usage
	if response != nil {
		usage = response.Usage
	}
	p.finish(span, "structured", request.Model, time.Since(start), usage, err)
	if err != nil {
		return nil, err
	}
	return response, nil
}

// Name returns the underlying provider name
func (p *InstrumentedProvider) Name() string {
	return p.provider.Name()
}

func (p *InstrumentedProvider) startSpan(ctx context.Context, op string, request CompletionRequest) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", p.provider.Name()),
		attribute.String("llm.model", request.Model),
		attribute.Int("llm.messages_count", len(request.Messages)),
	}
	if request.Temperature != nil {
		attrs = append(attrs, attribute.Float64("llm.temperature", *request.Temperature))
	}
	return observability.StartSpanWithOtel(ctx, fmt.Sprintf("llm.%s.%s", p.provider.Name(), op),
		trace.WithAttributes(attrs...))
}

func (p *InstrumentedProvider) finish(span trace.Span, op, model string, d time.Duration, usage Usage, err error) {
	span.SetAttributes(
		attribute.Int64("llm.duration_ms", d.Milliseconds()),
		attribute.Bool("llm.success", err == nil),
		attribute.Int("llm.usage.prompt_tokens", usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", usage.CompletionTokens),
		attribute.Int("llm.usage.total_tokens", usage.TotalTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.recorder != nil {
		p.recorder.ObserveBackendCall(p.provider.Name(), model, op, d, usage, err)
	}
}

// WrapProvider wraps a provider with instrumentation if not already wrapped
func WrapProvider(provider Provider, recorder Recorder) Provider {
	if _, ok := provider.(*InstrumentedProvider); ok {
		return provider
	}
	return NewInstrumentedProvider(provider, recorder)
}

// UnwrapProvider returns the underlying provider if wrapped, otherwise returns the provider as-is
func UnwrapProvider(provider Provider) Provider {
	if instrumented, ok := provider.(*InstrumentedProvider); ok {
		return instrumented.provider
	}
	return provider
}
