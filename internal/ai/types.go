// Package ai provides a provider-neutral chat model interface and its adapters.
package ai

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model's request to invoke a named tool. Arguments is the raw JSON object the model produced
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Input returns the call arguments as JSON, substituting an empty object when the model sent none
func (tc ToolCall) Input() json.RawMessage {
	if tc.Arguments == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(tc.Arguments)
}

// Message is one entry of a conversation. Assistant messages may carry tool calls; tool messages carry the
// observation for exactly one call, identified by ToolCallID
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func AssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

func ToolMessage(call ToolCall, content string, isError bool) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name, IsError: isError}
}

// ToolDefinition describes a tool to the model. Parameters is a JSON Schema object
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice controls whether the model may request tool calls
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone forbids tool calls; the model must answer directly
	ToolChoiceNone ToolChoice = "none"
)

type Request struct {
	System     string
	Messages   []Message
	Tools      []ToolDefinition
	ToolChoice ToolChoice
	MaxTokens  int64
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type Response struct {
	Message    Message
	StopReason string
	Usage      Usage
}

// Model generates the next assistant message for a conversation
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	// Name identifies the provider and model, e.g. "anthropic/claude-sonnet-4-0"
	Name() string
}
