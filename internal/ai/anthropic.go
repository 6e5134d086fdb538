package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cchalm/video-researcher/internal/transport"
)

// AnthropicModel generates messages with the Anthropic Messages API, streaming each response and accumulating it
// into a complete message
type AnthropicModel struct {
	client anthropic.Client
	model  anthropic.Model
	logger *slog.Logger
}

// NewAnthropicClient creates a client whose HTTP transport waits out 429 responses
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) anthropic.Client {
	rateLimitedHTTPClient := &http.Client{
		Transport: transport.WithRateLimiting(nil),
	}
	opts = append([]option.RequestOption{
		option.WithHTTPClient(rateLimitedHTTPClient),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(5),
	}, opts...)
	return anthropic.NewClient(opts...)
}

func NewAnthropicModel(client anthropic.Client, model string, logger *slog.Logger) *AnthropicModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicModel{client: client, model: anthropic.Model(model), logger: logger}
}

func (am *AnthropicModel) Name() string {
	return "anthropic/" + string(am.model)
}

func (am *AnthropicModel) Generate(ctx context.Context, req Request) (*Response, error) {
	params, err := buildAnthropicParams(am.model, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	stream := am.client.Messages.NewStreaming(ctx, params)
	response := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		err := response.Accumulate(event)
		if err != nil {
			return nil, fmt.Errorf("failed to accumulate response content stream: %w", err)
		}
	}
	if stream.Err() != nil {
		return nil, fmt.Errorf("failed to stream response: %w", stream.Err())
	}
	if response.StopReason == "" {
		b, err := json.Marshal(response)
		if err != nil {
			am.logger.Error("failed to marshal corrupt message for inspection", "error", err)
		}
		return nil, fmt.Errorf("malformed message: %v", string(b))
	}

	am.logger.Debug("token usage",
		"model", am.Name(),
		"input", response.Usage.InputTokens,
		"output", response.Usage.OutputTokens,
		"cache_create", response.Usage.CacheCreationInputTokens,
		"cache_read", response.Usage.CacheReadInputTokens,
	)

	return fromAnthropicMessage(response), nil
}

func buildAnthropicParams(model anthropic.Model, req Request) (anthropic.MessageNewParams, error) {
	messages, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: req.MaxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	// Tools stay declared on the forced-final step because earlier tool_use blocks in the history reference them;
	// tool_choice none is what forbids new calls
	for _, def := range req.Tools {
		tool := toAnthropicTool(def)
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	if len(params.Tools) > 0 {
		switch req.ToolChoice {
		case ToolChoiceNone:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}

	return params, nil
}

func toAnthropicTool(def ToolDefinition) anthropic.ToolParam {
	schema := anthropic.ToolInputSchemaParam{Properties: def.Parameters["properties"]}
	if required, ok := def.Parameters["required"].([]string); ok {
		schema.Required = required
	}
	return anthropic.ToolParam{
		Name:        def.Name,
		Description: anthropic.String(def.Description),
		InputSchema: schema,
	}
}

// toAnthropicMessages converts a conversation to Anthropic's alternating user/assistant form. Consecutive tool
// messages become tool_result blocks of a single user message
func toAnthropicMessages(msgs []Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for i, m := range msgs {
		switch m.Role {
		case RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		case RoleUser:
			flushResults()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input(), tc.Name))
			}
			if len(blocks) == 0 {
				// The API rejects empty assistant turns
				blocks = append(blocks, anthropic.NewTextBlock("(no response)"))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	flushResults()
	return out, nil
}

func fromAnthropicMessage(msg anthropic.Message) *Response {
	var text strings.Builder
	var calls []ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			calls = append(calls, ToolCall{ID: b.ID, Name: b.Name, Arguments: string(b.Input)})
		}
	}
	return &Response{
		Message:    AssistantMessage(text.String(), calls...),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens + msg.Usage.CacheReadInputTokens + msg.Usage.CacheCreationInputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
