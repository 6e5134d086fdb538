// Package aitest provides a deterministic ai.Model for tests.
package aitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cchalm/video-researcher/internal/ai"
)

// Step produces one model response in a scripted sequence
type Step func(ctx context.Context, req ai.Request) (*ai.Response, error)

// ScriptedModel replays a fixed sequence of steps and records every request it receives
type ScriptedModel struct {
	mu       sync.Mutex
	index    int
	steps    []Step
	requests []ai.Request
}

var _ ai.Model = (*ScriptedModel)(nil)

func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: append([]Step(nil), steps...)}
}

func (m *ScriptedModel) Name() string {
	return "scripted/test"
}

func (m *ScriptedModel) Generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	m.mu.Lock()
	req.Messages = append([]ai.Message(nil), req.Messages...)
	m.requests = append(m.requests, req)
	if m.index >= len(m.steps) {
		n := m.index + 1
		m.mu.Unlock()
		return nil, fmt.Errorf("script exhausted at step %d", n)
	}
	step := m.steps[m.index]
	m.index++
	m.mu.Unlock()

	return step(ctx, req)
}

// Requests returns a copy of every request received so far
func (m *ScriptedModel) Requests() []ai.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Request(nil), m.requests...)
}

// Calls returns the number of Generate calls so far
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reply answers with text and no tool calls
func Reply(text string) Step {
	return func(context.Context, ai.Request) (*ai.Response, error) {
		return &ai.Response{
			Message:    ai.AssistantMessage(text),
			StopReason: "end_turn",
			Usage:      ai.Usage{InputTokens: 10, OutputTokens: 5},
		}, nil
	}
}

// CallTools answers with the given tool calls and optional leading text
func CallTools(text string, calls ...ai.ToolCall) Step {
	return func(context.Context, ai.Request) (*ai.Response, error) {
		return &ai.Response{
			Message:    ai.AssistantMessage(text, append([]ai.ToolCall(nil), calls...)...),
			StopReason: "tool_use",
			Usage:      ai.Usage{InputTokens: 10, OutputTokens: 5},
		}, nil
	}
}

// Fail returns err from the model call
func Fail(err error) Step {
	return func(context.Context, ai.Request) (*ai.Response, error) {
		return nil, err
	}
}
