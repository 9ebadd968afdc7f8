package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecoai/sentinel/internal/llm/provider"
)

const namespace = "sentinel"

// SessionState is the ledger view exported as gauges
type SessionState struct {
	TokensRemaining  int
	TokensUsed       int
	WaterLiters      float64
	EnergyWh         float64
	Biodiversity     float64
	FinancialBenefit float64
	TotalDonated     float64
}

// Metrics holds the sentinel's Prometheus collectors. Each instance registers
// on its own registerer so tests can use a fresh registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	backendCallsTotal   *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec
	backendTokensTotal  *prometheus.CounterVec
	retriesTotal        *prometheus.CounterVec

	exchangesTotal      *prometheus.CounterVec
	exchangeDuration    *prometheus.HistogramVec
	classificationTotal *prometheus.CounterVec
	cacheLookupsTotal   *prometheus.CounterVec

	tokensRemaining  prometheus.Gauge
	tokensUsed       prometheus.Gauge
	waterLiters      prometheus.Gauge
	energyWh         prometheus.Gauge
	biodiversity     prometheus.Gauge
	financialBenefit prometheus.Gauge
	totalDonated     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a new registry
// that also carries the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		backendCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Generative backend calls by outcome",
		}, []string{"provider", "model", "operation", "status"}),
		backendCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Generative backend call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "operation"}),
		backendTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_tokens_total",
			Help:      "Tokens reported by the backend",
		}, []string{"provider", "kind"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_retries_total",
			Help:      "Retries scheduled after transient backend failures",
		}, []string{"operation"}),
		exchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Submitted exchanges by tier and outcome",
		}, []string{"tier", "outcome"}),
		exchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "End-to-end exchange latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"tier"}),
		classificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Prompt classifications by resulting tier and source",
		}, []string{"tier", "source"}),
		cacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Classification cache lookups by result",
		}, []string{"result"}),
		tokensRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tokens_remaining",
			Help:      "Token balance of the session",
		}),
		tokensUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tokens_used",
			Help:      "Tokens consumed by the session",
		}),
		waterLiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "water_liters",
			Help:      "Cooling water attributed to the session",
		}),
		energyWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_wh",
			Help:      "Energy attributed to the session in watt-hours",
		}),
		biodiversity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "biodiversity_score",
			Help:      "Biodiversity index of the session (0-100)",
		}),
		financialBenefit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "financial_benefit_usd",
			Help:      "Productivity value credited to the session",
		}),
		totalDonated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "donated_usd",
			Help:      "Total value donated through token replenishment",
		}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.backendCallsTotal,
		m.backendCallDuration,
		m.backendTokensTotal,
		m.retriesTotal,
		m.exchangesTotal,
		m.exchangeDuration,
		m.classificationTotal,
		m.cacheLookupsTotal,
		m.tokensRemaining,
		m.tokensUsed,
		m.waterLiters,
		m.energyWh,
		m.biodiversity,
		m.financialBenefit,
		m.totalDonated,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveBackendCall implements provider.Recorder
func (m *Metrics) ObserveBackendCall(providerName, model, operation string, duration time.Duration, usage provider.Usage, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.backendCallsTotal.WithLabelValues(providerName, model, operation, status).Inc()
	m.backendCallDuration.WithLabelValues(providerName, operation).Observe(duration.Seconds())
	if usage.PromptTokens > 0 {
		m.backendTokensTotal.WithLabelValues(providerName, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		m.backendTokensTotal.WithLabelValues(providerName, "completion").Add(float64(usage.CompletionTokens))
	}
}

// RecordRetry counts one scheduled retry
func (m *Metrics) RecordRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

// RecordExchange counts one exchange outcome and its latency
func (m *Metrics) RecordExchange(tier, outcome string, duration time.Duration) {
	m.exchangesTotal.WithLabelValues(tier, outcome).Inc()
	if duration > 0 {
		m.exchangeDuration.WithLabelValues(tier).Observe(duration.Seconds())
	}
}

// RecordClassification counts one classification by source
// ("model", "cache" or "fallback").
func (m *Metrics) RecordClassification(tier, source string) {
	m.classificationTotal.WithLabelValues(tier, source).Inc()
}

// RecordCacheLookup counts one cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetSessionState publishes the ledger gauges
func (m *Metrics) SetSessionState(s SessionState) {
	m.tokensRemaining.Set(float64(s.TokensRemaining))
	m.tokensUsed.Set(float64(s.TokensUsed))
	m.waterLiters.Set(s.WaterLiters)
	m.energyWh.Set(s.EnergyWh)
	m.biodiversity.Set(s.Biodiversity)
	m.financialBenefit.Set(s.FinancialBenefit)
	m.totalDonated.Set(s.TotalDonated)
}
