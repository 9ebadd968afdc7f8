package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	geminiDefaultModel  = "gemini-3-flash-preview"
	geminiClientTimeout = 30 * time.Second
)

func init() {
	RegisterFactory("gemini", func(cfg FactoryConfig) (Provider, error) {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY not set")
		}
		return NewGeminiProvider(&genai.ClientConfig{
			APIKey:      apiKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
		})
	})

	RegisterFactory("vertexai", func(cfg FactoryConfig) (Provider, error) {
		projectID := cfg.Project
		if projectID == "" {
			projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
		if projectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT not set")
		}
		location := cfg.Region
		if location == "" {
			location = os.Getenv("VERTEX_AI_LOCATION")
		}
		if location == "" {
			location = "us-central1"
		}
		return NewGeminiProvider(&genai.ClientConfig{
			Project:  projectID,
			Location: location,
			Backend:  genai.BackendVertexAI,
		})
	})
}

// GeminiProvider implements Provider on the Google Gen AI SDK. The same client
// serves the Gemini API (API key) and Vertex AI (application default credentials).
type GeminiProvider struct {
	name   string
	client *genai.Client
}

// NewGeminiProvider creates a provider from a Gen AI client configuration.
//
// All API calls respect the caller's context deadline; the provider adds no
// timeout of its own beyond client construction.
func NewGeminiProvider(cc *genai.ClientConfig) (*GeminiProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), geminiClientTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gen AI client: %w", err)
	}

	name := "gemini"
	if cc.Backend == genai.BackendVertexAI {
		name = "vertexai"
	}
	return &GeminiProvider{name: name, client: client}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return p.name
}

// CreateCompletion creates a completion using the Gen AI SDK
func (p *GeminiProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	contents, config := p.buildRequest(req)
	config.ResponseMIMEType = req.ResponseMIMEType

	resp, err := p.client.Models.GenerateContent(ctx, modelOrDefault(req.Model), contents, config)
	if err != nil {
		return nil, p.wrapError(err)
	}
	return p.parseResponse(resp)
}

// CreateStructured creates a JSON response constrained by the request schema
func (p *GeminiProvider) CreateStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	contents, config := p.buildRequest(req.CompletionRequest)
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = toGenAISchema(req.Schema)

	resp, err := p.client.Models.GenerateContent(ctx, modelOrDefault(req.Model), contents, config)
	if err != nil {
		return nil, p.wrapError(err)
	}

	compResp, err := p.parseResponse(resp)
	if err != nil {
		return nil, err
	}
	return &StructuredResponse{
		Data:               []byte(compResp.Content),
		CompletionResponse: *compResp,
	}, nil
}

func modelOrDefault(model string) string {
	if model == "" {
		return geminiDefaultModel
	}
	return model
}

// buildRequest converts messages to Gen AI contents; system messages become the
// system instruction.
func (p *GeminiProvider) buildRequest(req CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := m.Role
		if role == "assistant" {
			role = RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return contents, config
}

// parseResponse parses the Gen AI response into CompletionResponse
func (p *GeminiProvider) parseResponse(resp *genai.GenerateContentResponse) (*CompletionResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, NewProviderError(p.name, ErrorCodeEmptyResponse, "no candidates in response", nil)
	}

	candidate := resp.Candidates[0]
	var content strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			content.WriteString(part.Text)
		}
	}

	finishReason := string(candidate.FinishReason)
	if finishReason == "STOP" || finishReason == "" {
		finishReason = "stop"
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &CompletionResponse{
		Content:      content.String(),
		FinishReason: finishReason,
		Usage:        usage,
		Raw:          resp,
	}, nil
}

// wrapError converts Gen AI errors to ProviderError, keeping the HTTP status so
// the retry policy can classify it.
func (p *GeminiProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return NewStatusError(p.name, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return NewStatusError(p.name, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProviderError(p.name, ErrorCodeTimeout, err.Error(), err)
	}
	return NewProviderError(p.name, ErrorCodeUnknown, err.Error(), err)
}

// toGenAISchema maps the JSON-schema subset used by callers onto the Gen AI
// schema type, which spells types in upper case.
func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Required:    s.Required,
		Items:       toGenAISchema(s.Items),
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
		out.PropertyOrdering = s.PropertyNames()
	}
	return out
}
