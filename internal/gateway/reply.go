package gateway

import (
	"context"
	"fmt"

	"github.com/ecoai/sentinel/internal/economics"
	"github.com/ecoai/sentinel/internal/llm/provider"
)

// EmptyReply replaces a successful response that carried no text.
const EmptyReply = "No response generated."

const systemInstruction = `You are an AI optimized for permacomputing, acting as a Nature's Sentinel (inspired by the peacock, an indicator of environmental health). %s
      CRITICAL FORMATTING RULES:
      1. STRICTLY NO MARKDOWN. Do not use symbols like #, *, **, or - for lists or headers.
      2. Use double line breaks to separate sections.
      3. Use ALL CAPS for headers.
      4. Keep responses concise but human-readable. Output plain text.`

// SystemInstruction is the system prompt sent with every reply in tier t.
func SystemInstruction(t economics.Tier) string {
	return fmt.Sprintf(systemInstruction, economics.ProfileOf(t).Instruction)
}

// ModelFor returns the model that answers prompts in tier t.
func (g *Gateway) ModelFor(t economics.Tier) string {
	if economics.ProfileOf(t).Deep {
		return g.models.Deep
	}
	return g.models.Standard
}

// Reply answers prompt in tier t, with history as prior conversation context.
func (g *Gateway) Reply(ctx context.Context, history []provider.Message, prompt string, t economics.Tier) (string, error) {
	profile := economics.ProfileOf(t)

	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: SystemInstruction(profile.Tier)})
	messages = append(messages, history...)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: prompt})

	req := provider.CompletionRequest{
		Model:       g.ModelFor(profile.Tier),
		Messages:    messages,
		Temperature: provider.Float(profile.Temperature),
	}
	resp, err := call(ctx, g, "reply", func(ctx context.Context) (*provider.CompletionResponse, error) {
		return g.backend.CreateCompletion(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("reply: %w", err)
	}
	if resp.Content == "" {
		return EmptyReply, nil
	}
	return resp.Content, nil
}
