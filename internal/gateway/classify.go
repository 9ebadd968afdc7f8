package gateway

import (
	"context"
	"fmt"

	"github.com/ecoai/sentinel/internal/cache"
	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/llm/provider"
)

const classifierPrompt = `Analyze the user query and classify it into one of three compute intensity modes based on required reasoning depth:
      - LOW: Simple tasks, definitions, proofreading, translations.
      - MEDIUM: Summaries, creative writing, brainstorming, common knowledge.
      - HEAVY: Complex coding, advanced math, scientific reasoning, logic puzzles.

      User Query: "%s"

      Return only the word: LOW, MEDIUM, or HEAVY.`

// Classify asks the classifier model for the tier text needs. Output that names
// no tier resolves to MEDIUM; an error means the backend could not be reached
// and the caller decides the fallback.
func (g *Gateway) Classify(ctx context.Context, text string) (economics.Tier, error) {
	key := cache.Key(g.models.Classifier, text)
	if tier, ok := g.cachedTier(ctx, key); ok {
		g.recordClassification(tier, "cache")
		return tier, nil
	}

	req := provider.CompletionRequest{
		Model:            g.models.Classifier,
		Messages:         []provider.Message{{Role: provider.RoleUser, Content: fmt.Sprintf(classifierPrompt, text)}},
		ResponseMIMEType: "text/plain",
	}
	resp, err := call(ctx, g, "classify", func(ctx context.Context) (*provider.CompletionResponse, error) {
		return g.backend.CreateCompletion(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	tier := economics.MatchTier(resp.Content)
	g.recordClassification(tier, "model")
	g.storeTier(ctx, key, tier)
	return tier, nil
}

func (g *Gateway) cachedTier(ctx context.Context, key string) (economics.Tier, bool) {
	if g.cache == nil {
		return "", false
	}
	raw, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("classification cache read failed", "error", err)
	}
	hit := err == nil && ok
	var tier economics.Tier
	if hit {
		parsed, perr := economics.ParseTier(string(raw))
		if perr != nil {
			g.logger.Warn("discarding corrupt cache entry", "error", perr)
			hit = false
		}
		tier = parsed
	}
	if g.recorder != nil {
		g.recorder.RecordCacheLookup(hit)
	}
	return tier, hit
}

func (g *Gateway) storeTier(ctx context.Context, key string, tier economics.Tier) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, []byte(tier), g.cacheTTL); err != nil {
		g.logger.Warn("classification cache write failed", "error", err)
	}
}

func (g *Gateway) recordClassification(tier economics.Tier, source string) {
	if g.recorder != nil {
		g.recorder.RecordClassification(tier.String(), source)
	}
}
