package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecoai/sentinel/internal/cache"
	"github.com/ecoai/sentinel/internal/gateway"
	"github.com/ecoai/sentinel/internal/ledger"
	"github.com/ecoai/sentinel/internal/llm/provider"
	tracing "github.com/ecoai/sentinel/internal/observability"
	"github.com/ecoai/sentinel/internal/retry"
	"github.com/ecoai/sentinel/pkg/config"
	"github.com/ecoai/sentinel/pkg/observability"
)

// app is the wired component graph shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observability.Metrics
	health  *observability.HealthChecker
	gateway *gateway.Gateway
	advisor *gateway.Advisor
	ledger  *ledger.Ledger

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: observability.NewMetrics(),
		health:  observability.NewHealthChecker(version),
	}

	if err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
	}, log); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	})

	backend, err := provider.New(cfg.Backend.Provider, provider.FactoryConfig{
		APIKey:  cfg.Backend.APIKey,
		BaseURL: cfg.Backend.BaseURL,
		Project: cfg.Backend.Project,
		Region:  cfg.Backend.Region,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	backend = provider.WrapProvider(backend, a.metrics)

	classifierCache, err := a.buildCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.gateway = gateway.New(backend, gateway.Options{
		Models: gateway.Models{
			Classifier: cfg.Backend.ClassifierModel,
			Standard:   cfg.Backend.StandardModel,
			Deep:       cfg.Backend.DeepModel,
		},
		Retry: retry.Policy{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
		},
		Limiter:  gateway.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Cache:    classifierCache,
		CacheTTL: cfg.Cache.TTL,
		Recorder: a.metrics,
		Logger:   log.With("component", "gateway"),
	})
	a.advisor = gateway.NewAdvisor(a.gateway)
	a.ledger = ledger.New(a.gateway, a.gateway, ledger.Options{
		InitialTokens: cfg.Ledger.InitialTokens,
		InitialTier:   cfg.Ledger.InitialTier,
		AutoMode:      cfg.Ledger.AutoMode,
		TokenPriceUSD: cfg.Ledger.TokenPriceUSD,
		Observer:      a.metrics,
		Logger:        log.With("component", "ledger"),
	})

	log.Debug("sentinel ready",
		"provider", backend.Name(),
		"session_id", a.ledger.ID(),
		"auto_mode", cfg.Ledger.AutoMode,
		"cache", classifierCache != nil,
	)
	return a, nil
}

// buildCache returns nil when caching is disabled.
func (a *app) buildCache(ctx context.Context) (cache.Cache, error) {
	cfg := a.cfg.Cache
	if !cfg.Enabled {
		return nil, nil
	}

	mem, err := cache.NewMemory(cfg.MaxCostBytes)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	a.closers = append(a.closers, mem.Close)
	if cfg.RedisAddr == "" {
		return mem, nil
	}

	redis, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	if err != nil {
		return nil, fmt.Errorf("connect classification cache: %w", err)
	}
	a.closers = append(a.closers, func() { _ = redis.Close() })
	a.health.RegisterCheck(observability.CacheCheck(redis.Ping))
	return cache.NewTiered(mem, redis, cfg.TTL, a.log.With("component", "cache")), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
