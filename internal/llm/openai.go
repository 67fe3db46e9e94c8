package llm

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the API response has no choices.
var ErrNoChoices = errors.New("no choices in completion response")

// OpenAIProvider implements Provider on any OpenAI-compatible Chat
// Completions endpoint, using the functions calling convention.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	model  string
}

// NewOpenAIProvider creates a provider talking to api.openai.com, or to
// baseURL when it is non-empty.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return newOpenAICompatible("openai", cfg, model)
}

func newOpenAICompatible(name string, cfg openai.ClientConfig, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		name:   name,
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	apiReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: lo.Map(req.Messages, func(m Message, _ int) openai.ChatCompletionMessage { return toOpenAIMessage(m) }),
		Stop:     req.Stop,
		TopP:     float32(req.TopP),
	}

	// temperature is omitempty on the wire; zero would fall back to the
	// service default of 1.
	apiReq.Temperature = float32(req.Temperature)
	if req.Temperature == 0 {
		apiReq.Temperature = math.SmallestNonzeroFloat32
	}

	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	}

	if len(req.Functions) > 0 {
		apiReq.Functions = lo.Map(req.Functions, func(f FunctionSpec, _ int) openai.FunctionDefinition {
			return openai.FunctionDefinition{
				Name:        f.Name,
				Description: f.Description,
				Parameters:  f.Parameters,
			}
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s chat completion", p.name)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	choice := resp.Choices[0]

	return &CompletionResponse{
		Message:      fromOpenAIMessage(choice.Message),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:    string(m.Role),
		Content: m.Content,
		Name:    m.Name,
	}
	if m.FunctionCall != nil {
		msg.FunctionCall = &openai.FunctionCall{
			Name:      m.FunctionCall.Name,
			Arguments: m.FunctionCall.Arguments,
		}
	}
	return msg
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	msg := Message{
		Role:    Role(m.Role),
		Content: m.Content,
		Name:    m.Name,
	}
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	// A call without a name is kept so the caller can reject it.
	if m.FunctionCall != nil {
		msg.FunctionCall = &FunctionCall{
			Name:      m.FunctionCall.Name,
			Arguments: m.FunctionCall.Arguments,
		}
	}
	return msg
}
