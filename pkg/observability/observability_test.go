package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoai/sentinel/internal/llm/provider"
)

func TestMetrics_BackendCalls(t *testing.T) {
	m := NewMetrics()

	m.ObserveBackendCall("gemini", "flash", "completion", 120*time.Millisecond,
		provider.Usage{PromptTokens: 30, CompletionTokens: 12}, nil)
	m.ObserveBackendCall("gemini", "flash", "completion", time.Second, provider.Usage{}, errors.New("503"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCallsTotal.WithLabelValues("gemini", "flash", "completion", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCallsTotal.WithLabelValues("gemini", "flash", "completion", "error")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.backendTokensTotal.WithLabelValues("gemini", "prompt")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.backendTokensTotal.WithLabelValues("gemini", "completion")))
}

func TestMetrics_SessionGauges(t *testing.T) {
	m := NewMetrics()
	m.SetSessionState(SessionState{
		TokensRemaining:  2472,
		TokensUsed:       28,
		WaterLiters:      0.014,
		EnergyWh:         0.056,
		Biodiversity:     91.994,
		FinancialBenefit: 7,
		TotalDonated:     5,
	})

	assert.Equal(t, 2472.0, testutil.ToFloat64(m.tokensRemaining))
	assert.Equal(t, 28.0, testutil.ToFloat64(m.tokensUsed))
	assert.InDelta(t, 91.994, testutil.ToFloat64(m.biodiversity), 1e-9)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.totalDonated))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.RecordExchange("HEAVY", "completed", 2*time.Second)
	m.RecordExchange("HEAVY", "busy", 0)
	m.RecordClassification("LOW", "cache")
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordRetry("classify")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchangesTotal.WithLabelValues("HEAVY", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchangesTotal.WithLabelValues("HEAVY", "busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classificationTotal.WithLabelValues("LOW", "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("classify")))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/nodes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nodes/fin-1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/v1/nodes/{id}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sentinel_http_requests_total"))
}

func TestHealthChecker_NoChecks(t *testing.T) {
	hc := NewHealthChecker("test")
	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Empty(t, resp.Checks)

	rec := httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthChecker_CacheOutageDegrades(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.RegisterCheck(CacheCheck(func(context.Context) error { return errors.New("redis down") }))

	resp := hc.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, resp.Status)
	assert.Equal(t, HealthStatusDegraded, resp.Checks["cache"].Status)
	assert.Equal(t, "redis down", resp.Checks["cache"].Message)

	rec := httptest.NewRecorder()
	hc.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	hc.RegisterCheck(CacheCheck(func(context.Context) error { return nil }))
	assert.Equal(t, HealthStatusHealthy, hc.Check(context.Background()).Status, "re-registering replaces the check")
}

func TestHealthChecker_CriticalFailure(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.RegisterCheck(CacheCheck(func(context.Context) error { return errors.New("redis down") }))
	hc.RegisterCheck(HealthCheck{
		Name:     "backend",
		Critical: true,
		Timeout:  10 * time.Millisecond,
		Probe: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	rec := httptest.NewRecorder()
	hc.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, HealthStatusUnhealthy, body.Status)
	assert.Equal(t, HealthStatusUnhealthy, body.Checks["backend"].Status)
	assert.Equal(t, HealthStatusDegraded, body.Checks["cache"].Status)
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}
