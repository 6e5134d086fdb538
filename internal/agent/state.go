// Package agent implements the research agent's reasoning loop: the model reasons over the conversation, requested
// tool calls are executed and folded back in as observations, and the loop repeats until the model answers without
// requesting tools or the step limit forces a final answer.
package agent

import (
	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
)

// State is the conversation state of one thread as it flows through a turn
type State struct {
	ThreadID string
	// Messages is the full conversation the model sees, oldest first
	Messages []ai.Message
	// IsLastStep is true while the current step is the last one the step limit permits
	IsLastStep bool
	// Tasks is the thread's task list. It is shared, not copied, between states of the same thread
	Tasks *task.Store

	// Step is the number of reasoning steps taken in the most recent turn
	Step int
	// FinalAnswer is the content of the assistant message that ended the most recent turn
	FinalAnswer string
	// BudgetExhausted reports that the most recent turn was ended by the step limit
	BudgetExhausted bool
}

func cloneMessages(in []ai.Message) []ai.Message {
	out := make([]ai.Message, len(in))
	for i, m := range in {
		if m.ToolCalls != nil {
			m.ToolCalls = append([]ai.ToolCall(nil), m.ToolCalls...)
		}
		out[i] = m
	}
	return out
}
