package telemetry

import "github.com/google/uuid"

// NewThreadID generates a new conversation thread UUID
func NewThreadID() string {
	return uuid.New().String()
}

// NewTurnID generates a new turn UUID
func NewTurnID() string {
	return uuid.New().String()
}

// NewToolCallID generates an id for a tool call the model returned without one
func NewToolCallID() string {
	return "call_" + uuid.New().String()
}

