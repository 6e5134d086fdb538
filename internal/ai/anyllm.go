package ai

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
)

// AnyLLMModel generates messages through any-llm-go, covering providers without a dedicated adapter
type AnyLLMModel struct {
	backend  anyllmlib.Provider
	provider string
	model    string
}

// NewAnyLLMModel creates a model for one of: ollama, gemini, mistral, groq, deepseek
func NewAnyLLMModel(provider, model string, opts ...anyllmlib.Option) (*AnyLLMModel, error) {
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	backend, err := createAnyLLMBackend(provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", provider, err)
	}
	return &AnyLLMModel{backend: backend, provider: strings.ToLower(provider), model: model}, nil
}

func createAnyLLMBackend(provider string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(provider) {
	case "ollama":
		return ollama.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: ollama, gemini, mistral, groq, deepseek", provider)
	}
}

func (am *AnyLLMModel) Name() string {
	return am.provider + "/" + am.model
}

func (am *AnyLLMModel) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := am.backend.Completion(ctx, buildAnyLLMParams(am.model, req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	choice := resp.Choices[0]
	out := &Response{StopReason: string(choice.FinishReason)}
	var calls []ToolCall
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	out.Message = AssistantMessage(choice.Message.ContentString(), calls...)
	if resp.Usage != nil {
		out.Usage = Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		}
	}
	return out, nil
}

// buildAnyLLMParams converts a request. any-llm has no portable way to forbid tool calls, so on a forced-final
// request the tools are simply not offered
func buildAnyLLMParams(model string, req Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.System != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, toAnyLLMMessage(m))
	}

	params := anyllmlib.CompletionParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		mt := int(req.MaxTokens)
		params.MaxTokens = &mt
	}
	if req.ToolChoice != ToolChoiceNone {
		for _, td := range req.Tools {
			params.Tools = append(params.Tools, anyllmlib.Tool{
				Type: "function",
				Function: anyllmlib.Function{
					Name:        td.Name,
					Description: td.Description,
					Parameters:  td.Parameters,
				},
			})
		}
	}
	return params
}

func toAnyLLMMessage(m Message) anyllmlib.Message {
	msg := anyllmlib.Message{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	if m.Role == RoleTool {
		msg.Name = m.Name
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, anyllmlib.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: anyllmlib.FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Input()),
			},
		})
	}
	return msg
}
