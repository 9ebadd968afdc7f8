package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	bedrockDefaultModel = "anthropic.claude-3-5-haiku-20241022-v1:0"
	awsConfigTimeout    = 10 * time.Second
)

func init() {
	RegisterFactory("bedrock", func(cfg FactoryConfig) (Provider, error) {
		ctx, cancel := context.WithTimeout(context.Background(), awsConfigTimeout)
		defer cancel()

		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return NewBedrockProvider(bedrockruntime.NewFromConfig(awsCfg)), nil
	})
}

// converser is the subset of the Bedrock runtime client the provider needs.
type converser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements Provider on the Amazon Bedrock Converse API
type BedrockProvider struct {
	client converser
}

// NewBedrockProvider wraps a Bedrock runtime client.
func NewBedrockProvider(client converser) *BedrockProvider {
	return &BedrockProvider{client: client}
}

// Name returns the provider name
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// CreateCompletion runs one Converse call
func (p *BedrockProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	out, err := p.client.Converse(ctx, p.buildInput(req, ""))
	if err != nil {
		return nil, p.wrapError(err)
	}
	return p.parseOutput(out)
}

// CreateStructured asks for JSON through the system prompt, since Converse has
// no response-schema parameter, and extracts the first JSON object of the reply.
func (p *BedrockProvider) CreateStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	var directive string
	if req.Schema != nil {
		raw, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		directive = "Respond with a single JSON object matching this JSON Schema and nothing else:\n" + string(raw)
	} else {
		directive = "Respond with a single JSON object and nothing else."
	}

	out, err := p.client.Converse(ctx, p.buildInput(req.CompletionRequest, directive))
	if err != nil {
		return nil, p.wrapError(err)
	}
	compResp, err := p.parseOutput(out)
	if err != nil {
		return nil, err
	}
	doc, ok := firstJSONObject(compResp.Content)
	if !ok {
		return nil, NewProviderError("bedrock", ErrorCodeEmptyResponse, "no JSON object in response", nil)
	}
	return &StructuredResponse{
		Data:               doc,
		CompletionResponse: *compResp,
	}, nil
}

func (p *BedrockProvider) buildInput(req CompletionRequest, extraSystem string) *bedrockruntime.ConverseInput {
	model := req.Model
	if model == "" {
		model = bedrockDefaultModel
	}

	var system []types.SystemContentBlock
	messages := make([]types.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == RoleModel || m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	if extraSystem != "" {
		system = append(system, &types.SystemContentBlockMemberText{Value: extraSystem})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
		System:   system,
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		input.InferenceConfig = &types.InferenceConfiguration{}
		if req.Temperature != nil {
			input.InferenceConfig.Temperature = aws.Float32(float32(*req.Temperature))
		}
		if req.MaxTokens > 0 {
			input.InferenceConfig.MaxTokens = aws.Int32(int32(req.MaxTokens))
		}
	}
	return input
}

func (p *BedrockProvider) parseOutput(out *bedrockruntime.ConverseOutput) (*CompletionResponse, error) {
	if out == nil {
		return nil, NewProviderError("bedrock", ErrorCodeEmptyResponse, "empty converse output", nil)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, NewProviderError("bedrock", ErrorCodeEmptyResponse, "converse output carries no message", nil)
	}

	var content strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			content.WriteString(text.Value)
		}
	}

	var usage Usage
	if out.Usage != nil {
		usage.PromptTokens = int(aws.ToInt32(out.Usage.InputTokens))
		usage.CompletionTokens = int(aws.ToInt32(out.Usage.OutputTokens))
		usage.TotalTokens = int(aws.ToInt32(out.Usage.TotalTokens))
	}

	finishReason := string(out.StopReason)
	if finishReason == string(types.StopReasonEndTurn) {
		finishReason = "stop"
	}

	return &CompletionResponse{
		Content:      content.String(),
		FinishReason: finishReason,
		Usage:        usage,
		Raw:          out,
	}, nil
}

func (p *BedrockProvider) wrapError(err error) error {
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		return NewStatusError("bedrock", withStatus.HTTPStatusCode(), err.Error(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProviderError("bedrock", ErrorCodeTimeout, err.Error(), err)
	}
	return NewProviderError("bedrock", ErrorCodeUnknown, err.Error(), err)
}

// firstJSONObject returns the first complete JSON object in text. Converse
// has no response schema, so models may wrap the object in prose or fences.
func firstJSONObject(text string) (json.RawMessage, bool) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var doc json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&doc); err == nil {
			return doc, true
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}
