package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoai/sentinel/internal/cache"
	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/llm/provider"
	"github.com/ecoai/sentinel/internal/retry"
)

type fakeRecorder struct {
	mu              sync.Mutex
	classifications []string
	lookups         []bool
	retries         []string
}

func (f *fakeRecorder) RecordClassification(tier, source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifications = append(f.classifications, tier+"/"+source)
}

func (f *fakeRecorder) RecordCacheLookup(hit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, hit)
}

func (f *fakeRecorder) RecordRetry(operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries = append(f.retries, operation)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond}
}

func newTestGateway(mock *provider.MockProvider, opts Options) *Gateway {
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialDelay == 0 {
		opts.Retry = fastPolicy()
	}
	return New(mock, opts)
}

func TestClassify_ParsesTier(t *testing.T) {
	tests := []struct {
		output string
		want   economics.Tier
	}{
		{"HEAVY", economics.Heavy},
		{"  low\n", economics.Low},
		{"MEDIUM", economics.Medium},
		{"I think this is HEAVY, not LOW", economics.Heavy},
		{"no idea", economics.Medium},
		{"", economics.Medium},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			mock := provider.NewMockProvider("")
			mock.AddText(tt.output)
			g := newTestGateway(mock, Options{})

			tier, err := g.Classify(context.Background(), "what is entropy?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, tier)
		})
	}
}

func TestClassify_Request(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddText("LOW")
	g := newTestGateway(mock, Options{Models: Models{Classifier: "tiny"}})

	_, err := g.Classify(context.Background(), "define moss")
	require.NoError(t, err)

	calls := mock.CompletionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tiny", calls[0].Model)
	assert.Equal(t, "text/plain", calls[0].ResponseMIMEType)
	require.Len(t, calls[0].Messages, 1)
	assert.Contains(t, calls[0].Messages[0].Content, `User Query: "define moss"`)
	assert.Contains(t, calls[0].Messages[0].Content, "Return only the word: LOW, MEDIUM, or HEAVY.")
}

func TestClassify_RetriesTransientThenFails(t *testing.T) {
	mock := provider.NewMockProvider("")
	for i := 0; i < 4; i++ {
		mock.AddError(retry.NewStatusError(503, "overloaded"))
	}
	rec := &fakeRecorder{}
	g := newTestGateway(mock, Options{Recorder: rec})

	_, err := g.Classify(context.Background(), "prove Fermat")
	require.Error(t, err)
	assert.Len(t, mock.CompletionCalls(), 4)
	assert.Equal(t, []string{"classify", "classify", "classify"}, rec.retries)
}

func TestClassify_NonTransientNotRetried(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddError(retry.NewStatusError(429, "quota"))
	g := newTestGateway(mock, Options{})

	_, err := g.Classify(context.Background(), "hello")
	require.Error(t, err)
	assert.Len(t, mock.CompletionCalls(), 1)
}

func TestClassify_Cache(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddText("HEAVY")
	rec := &fakeRecorder{}
	c := newMapCache()
	g := newTestGateway(mock, Options{Cache: c, CacheTTL: time.Hour, Recorder: rec})

	first, err := g.Classify(context.Background(), "Solve x^2 = 2")
	require.NoError(t, err)
	second, err := g.Classify(context.Background(), "  solve X^2 = 2 ")
	require.NoError(t, err)

	assert.Equal(t, economics.Heavy, first)
	assert.Equal(t, economics.Heavy, second)
	assert.Len(t, mock.CompletionCalls(), 1)
	assert.Equal(t, []bool{false, true}, rec.lookups)
	assert.Equal(t, []string{"HEAVY/model", "HEAVY/cache"}, rec.classifications)
}

func TestClassify_CorruptCacheEntry(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddText("LOW")
	c := newMapCache()
	g := newTestGateway(mock, Options{Cache: c})
	require.NoError(t, c.Set(context.Background(), cache.Key(g.Models().Classifier, "hi"), []byte("EXTREME"), 0))

	tier, err := g.Classify(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, economics.Low, tier)
	assert.Len(t, mock.CompletionCalls(), 1)
}

func TestReply_RoutesByTier(t *testing.T) {
	history := []provider.Message{
		{Role: provider.RoleUser, Content: "hi"},
		{Role: provider.RoleModel, Content: "HELLO"},
	}

	tests := []struct {
		tier        economics.Tier
		model       string
		temperature float64
	}{
		{economics.Low, "flash", 0.6},
		{economics.Medium, "flash", 0.6},
		{economics.Heavy, "pro", 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			mock := provider.NewMockProvider("")
			mock.AddText("ANSWER\n\nForty two.")
			g := newTestGateway(mock, Options{Models: Models{Standard: "flash", Deep: "pro"}})

			out, err := g.Reply(context.Background(), history, "meaning of life?", tt.tier)
			require.NoError(t, err)
			assert.Equal(t, "ANSWER\n\nForty two.", out)

			calls := mock.CompletionCalls()
			require.Len(t, calls, 1)
			req := calls[0]
			assert.Equal(t, tt.model, req.Model)
			require.NotNil(t, req.Temperature)
			assert.Equal(t, tt.temperature, *req.Temperature)

			require.Len(t, req.Messages, 4)
			assert.Equal(t, provider.RoleSystem, req.Messages[0].Role)
			assert.Contains(t, req.Messages[0].Content, economics.ProfileOf(tt.tier).Instruction)
			assert.Contains(t, req.Messages[0].Content, "STRICTLY NO MARKDOWN")
			assert.Equal(t, history, req.Messages[1:3])
			assert.Equal(t, provider.Message{Role: provider.RoleUser, Content: "meaning of life?"}, req.Messages[3])
		})
	}
}

func TestReply_EmptyContent(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddText("")
	g := newTestGateway(mock, Options{})

	out, err := g.Reply(context.Background(), nil, "say nothing", economics.Low)
	require.NoError(t, err)
	assert.Equal(t, EmptyReply, out)
}

func TestReply_RecoversAfterTransientFailures(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddError(retry.NewStatusError(500, "boom"))
	mock.AddError(retry.NewStatusError(503, "busy"))
	g := newTestGateway(mock, Options{})

	// errors drain first, then the default reply
	out, err := g.Reply(context.Background(), nil, "hello", economics.Medium)
	require.NoError(t, err)
	assert.Equal(t, "Mock response", out)
	assert.Len(t, mock.CompletionCalls(), 3)
}

func TestReply_ContextCancelled(t *testing.T) {
	mock := provider.NewMockProvider("")
	g := newTestGateway(mock, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Reply(ctx, nil, "hello", economics.Medium)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 5))
	l := NewLimiter(10, 0)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())

	mock := provider.NewMockProvider("")
	g := newTestGateway(mock, Options{Limiter: NewLimiter(1000, 1)})
	for i := 0; i < 3; i++ {
		_, err := g.Reply(context.Background(), nil, "x", economics.Low)
		require.NoError(t, err)
	}
	assert.Len(t, mock.CompletionCalls(), 3)
}

const validReport = `{
  "metrics": {"planetScore": 72, "profitScore": 64, "waterImpact": "-12%", "roiFactor": "1.8x"},
  "temporalBreakeven": {"value": 14, "unit": "Months", "description": "Cooling savings repay the pilot."},
  "socialImpact": {"score": 80, "description": "Local jobs.", "pillars": ["Water", "Jobs"]},
  "roadmap": [{"stage": "Pilot", "timeline": "Q1", "action": "Meter", "gains": "Data", "losses": "Capex"}],
  "particulars": [{"category": "Water", "variable": "WUE", "value": "0.4 L/kWh", "impact": "Positive"}],
  "verdict": "Proceed with a non-AI baseline first."
}`

func TestAdvisor_Analyze(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddStructuredJSON(validReport)
	g := newTestGateway(mock, Options{Models: Models{Deep: "pro"}})

	report, err := NewAdvisor(g).Analyze(context.Background(), "AI irrigation for vineyards")
	require.NoError(t, err)
	assert.Equal(t, 72.0, report.Metrics.PlanetScore)
	assert.Equal(t, "1.8x", report.Metrics.ROIFactor)
	assert.Equal(t, "Months", report.TemporalBreakeven.Unit)
	assert.Equal(t, []string{"Water", "Jobs"}, report.SocialImpact.Pillars)
	require.Len(t, report.Roadmap, 1)
	assert.Equal(t, "Capex", report.Roadmap[0].Losses)
	assert.Equal(t, "WUE", report.Particulars[0].Variable)
	assert.True(t, strings.HasPrefix(report.Verdict, "Proceed"))

	calls := mock.StructuredCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pro", calls[0].Model)
	assert.Same(t, ReportSchema, calls[0].Schema)
	assert.Contains(t, calls[0].Messages[0].Content, `"AI irrigation for vineyards"`)
}

func TestAdvisor_SchemaRequiresEveryField(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"metrics", "temporalBreakeven", "socialImpact", "roadmap", "particulars", "verdict"},
		ReportSchema.Required)
	assert.ElementsMatch(t,
		[]string{"planetScore", "profitScore", "waterImpact", "roiFactor"},
		ReportSchema.Properties["metrics"].Required)
	assert.Equal(t, "array", ReportSchema.Properties["roadmap"].Type)
	assert.Equal(t, "string", ReportSchema.Properties["socialImpact"].Properties["pillars"].Items.Type)
	assert.Equal(t,
		[]string{"metrics", "temporalBreakeven", "socialImpact", "roadmap", "particulars", "verdict"},
		ReportSchema.PropertyNames())
	assert.Equal(t,
		[]string{"stage", "timeline", "action", "gains", "losses"},
		ReportSchema.Properties["roadmap"].Items.Order)
}

func TestAdvisor_ScoreOutOfRange(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddStructuredJSON(strings.Replace(validReport, `"planetScore": 72`, `"planetScore": 720`, 1))
	g := newTestGateway(mock, Options{})

	_, err := NewAdvisor(g).Analyze(context.Background(), "anything")
	require.ErrorIs(t, err, ErrInvalidReport)
	assert.Contains(t, err.Error(), "metrics.planetScore")
}

func TestAdvisor_InvalidReport(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddStructuredJSON(`{"verdict": "yes"}`)
	g := newTestGateway(mock, Options{})

	_, err := NewAdvisor(g).Analyze(context.Background(), "anything")
	require.ErrorIs(t, err, ErrInvalidReport)
	assert.Contains(t, err.Error(), "metrics")
}

func TestAdvisor_BackendFailure(t *testing.T) {
	mock := provider.NewMockProvider("")
	mock.AddError(errors.New("bad key"))
	g := newTestGateway(mock, Options{})

	_, err := NewAdvisor(g).Analyze(context.Background(), "anything")
	require.Error(t, err)
	assert.Len(t, mock.StructuredCalls(), 1)
}
