// Package api exposes one sentinel session over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ecoai/sentinel/internal/gateway"
	"github.com/ecoai/sentinel/internal/ledger"
	"github.com/ecoai/sentinel/internal/logger"
	"github.com/ecoai/sentinel/pkg/observability"
)

const maxBodyBytes = 64 << 10

// Advisor produces business-case reports.
type Advisor interface {
	Analyze(ctx context.Context, description string) (*gateway.Report, error)
}

// Config holds the handler's dependencies. Metrics, Health and Advisor are optional.
type Config struct {
	Ledger          *ledger.Ledger
	Advisor         Advisor
	Metrics         *observability.Metrics
	Health          *observability.HealthChecker
	ExchangeTimeout time.Duration
	Logger          *slog.Logger
}

// Handler serves the session routes.
type Handler struct {
	ledger  *ledger.Ledger
	advisor Advisor
	metrics *observability.Metrics
	health  *observability.HealthChecker
	timeout time.Duration
	logger  *slog.Logger
}

// NewHandler creates a handler over cfg.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		ledger:  cfg.Ledger,
		advisor: cfg.Advisor,
		metrics: cfg.Metrics,
		health:  cfg.Health,
		timeout: cfg.ExchangeTimeout,
		logger:  cfg.Logger,
	}
}

// Router builds the chi router with middleware and every route mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
		r.Handle("/metrics", h.metrics.Handler())
	}

	if h.health != nil {
		r.Get("/health", h.health.HealthHandler())
		r.Get("/health/ready", h.health.ReadinessHandler())
	}
	r.Get("/health/live", observability.LivenessHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", h.getSession)
		r.Post("/session/start", h.startSession)
		r.Post("/exchanges", h.submitExchange)
		r.Post("/replenish", h.replenish)
		r.Put("/tier", h.setTier)
		r.Post("/auto-mode", h.toggleAutoMode)
		r.Post("/advise", h.advise)
		r.Post("/session/dispatch", h.dispatchPending)
		r.Get("/tiers", h.listTiers)
		r.Get("/nodes", h.listNodes)
		r.Get("/nodes/{id}", h.getNode)
	})
	return r
}

// NewHTTPServer wraps the router in a server listening on addr.
func NewHTTPServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			id := middleware.GetReqID(r.Context())
			next.ServeHTTP(ww, r.WithContext(logger.WithRequestID(r.Context(), id)))
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", id,
			)
		})
	}
}

// PublishSnapshot copies a ledger snapshot into the session gauges.
func PublishSnapshot(m *observability.Metrics, s ledger.Snapshot) {
	if m == nil {
		return
	}
	m.SetSessionState(observability.SessionState{
		TokensRemaining:  s.TokensRemaining,
		TokensUsed:       s.Metrics.TokensUsed,
		WaterLiters:      s.WaterUsedLiters,
		EnergyWh:         s.EnergyConsumedWh,
		Biodiversity:     s.Metrics.Biodiversity,
		FinancialBenefit: s.Metrics.FinancialBenefit,
		TotalDonated:     s.TotalDonated,
	})
}
