// Package gateway turns the generative backend into the three capabilities the
// sentinel needs: classifying a prompt into a compute tier, replying to a
// prompt in a tier, and auditing a business case. Every backend call is paced
// by an optional rate limiter and wrapped in the retry policy.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ecoai/sentinel/internal/cache"
	"github.com/ecoai/sentinel/internal/llm/provider"
	"github.com/ecoai/sentinel/internal/retry"
)

// Models names the backend model used per capability.
type Models struct {
	Classifier string
	Standard   string
	Deep       string
}

// DefaultModels are the Gemini models the sentinel was tuned on.
func DefaultModels() Models {
	return Models{
		Classifier: "gemini-3-flash-preview",
		Standard:   "gemini-3-flash-preview",
		Deep:       "gemini-3-pro-preview",
	}
}

// Recorder receives gateway events. pkg/observability.Metrics implements it.
type Recorder interface {
	RecordClassification(tier, source string)
	RecordCacheLookup(hit bool)
	RecordRetry(operation string)
}

// Options configures a Gateway. Zero values disable the optional parts.
type Options struct {
	Models   Models
	Retry    retry.Policy
	Limiter  *rate.Limiter
	Cache    cache.Cache
	CacheTTL time.Duration
	Recorder Recorder
	Logger   *slog.Logger
}

// Gateway is safe for concurrent use.
type Gateway struct {
	backend  provider.Provider
	models   Models
	policy   retry.Policy
	limiter  *rate.Limiter
	cache    cache.Cache
	cacheTTL time.Duration
	recorder Recorder
	logger   *slog.Logger
}

// New creates a gateway over backend.
func New(backend provider.Provider, opts Options) *Gateway {
	defaults := DefaultModels()
	if opts.Models.Classifier == "" {
		opts.Models.Classifier = defaults.Classifier
	}
	if opts.Models.Standard == "" {
		opts.Models.Standard = defaults.Standard
	}
	if opts.Models.Deep == "" {
		opts.Models.Deep = defaults.Deep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gateway{
		backend:  backend,
		models:   opts.Models,
		policy:   opts.Retry,
		limiter:  opts.Limiter,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// NewLimiter builds a limiter from a rate and burst; a non-positive rate
// returns nil, meaning unlimited.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Models returns the resolved model routing.
func (g *Gateway) Models() Models {
	return g.models
}

// call runs op under the retry policy, waiting on the limiter before every
// attempt so retries are paced too.
func call[T any](ctx context.Context, g *Gateway, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	policy := g.policy
	policy.Logger = g.logger.With("operation", operation)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		if g.recorder != nil {
			g.recorder.RecordRetry(operation)
		}
	}

	return retry.Do(ctx, policy, func(ctx context.Context) (T, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, err
			}
		}
		return op(ctx)
	})
}
