// Package tools provides the capabilities the research agent can invoke and the registry that dispatches to them.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
)

// ErrUnknownTool is reported when a call names a tool that is not registered
var ErrUnknownTool = errors.New("unknown tool")

// Tool defines the interface for all capabilities
type Tool interface {
	// Definition returns the name, description and argument schema presented to the model
	Definition() ai.ToolDefinition

	// Run performs the tool call. The error will be a ToolInputError if it is recoverable by fixing inputs. Any other
	// error is an upstream or internal failure; both are reported to the model as a failed result
	Run(ctx context.Context, args json.RawMessage, toolCtx *ToolContext) (Result, error)
}

// ToolContext provides the per-thread state tools need during execution
type ToolContext struct {
	ThreadID string
	Tasks    *task.Store
}

// ToolInputError represents an error that could be recovered by correcting inputs to the tool. This error will be
// uploaded to the AI, so it must not contain any sensitive information
type ToolInputError struct {
	cause error
}

func (tie ToolInputError) Error() string {
	return fmt.Sprintf("tool input error: %s", tie.cause)
}

func (tie ToolInputError) Unwrap() error {
	return tie.cause
}

func NewToolInputError(cause error) ToolInputError {
	return ToolInputError{cause: cause}
}

// ToolRegistry holds the fixed set of tools available to the agent. It is built once and is safe for concurrent use
type ToolRegistry struct {
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	logger  *slog.Logger
}

type RegistryOption func(*ToolRegistry)

// WithCallTimeout bounds each individual tool call
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(tr *ToolRegistry) { tr.timeout = d }
}

func WithLogger(l *slog.Logger) RegistryOption {
	return func(tr *ToolRegistry) { tr.logger = l }
}

// NewToolRegistry creates a registry of the given tools. Names must be unique
func NewToolRegistry(tools []Tool, opts ...RegistryOption) (*ToolRegistry, error) {
	registry := &ToolRegistry{
		tools:  make(map[string]Tool, len(tools)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(registry)
	}
	for _, tool := range tools {
		name := tool.Definition().Name
		if name == "" {
			return nil, fmt.Errorf("tool %T has no name", tool)
		}
		if _, dup := registry.tools[name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", name)
		}
		registry.tools[name] = tool
		registry.order = append(registry.order, name)
	}
	return registry, nil
}

// GetTool returns a tool by name, or an error wrapping ErrUnknownTool
func (tr *ToolRegistry) GetTool(name string) (Tool, error) {
	tool, ok := tr.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool, nil
}

// Names returns the registered tool names in registration order
func (tr *ToolRegistry) Names() []string {
	return append([]string(nil), tr.order...)
}

// Definitions returns every tool's definition in registration order, for binding to a model request
func (tr *ToolRegistry) Definitions() []ai.ToolDefinition {
	defs := make([]ai.ToolDefinition, 0, len(tr.order))
	for _, name := range tr.order {
		defs = append(defs, tr.tools[name].Definition())
	}
	return defs
}

// ProcessToolCall runs a tool call and always produces a result envelope. Unknown tools, input errors, upstream
// failures and panics all become failed results so the model can see them and react
func (tr *ToolRegistry) ProcessToolCall(ctx context.Context, call ai.ToolCall, toolCtx *ToolContext) (result Result) {
	tool, err := tr.GetTool(call.Name)
	if err != nil {
		tr.logger.Warn("model requested an unregistered tool", "tool", call.Name)
		return Failure(err.Error())
	}

	if tr.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tr.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			tr.logger.Error("tool panicked", "tool", call.Name, "panic", r, "stack", string(debug.Stack()))
			result = Failure(fmt.Sprintf("tool %s failed unexpectedly", call.Name))
		}
	}()

	result, err = tool.Run(ctx, call.Input(), toolCtx)

	var tie ToolInputError
	if errors.As(err, &tie) {
		// Respond with an error result to give the AI the opportunity to correct the inputs
		tr.logger.Warn("recoverable tool error, reporting to the AI to give it an opportunity to retry",
			"tool", call.Name, "error", err)
		return Failure(tie.Error())
	} else if err != nil {
		tr.logger.Warn("tool failed", "tool", call.Name, "error", err)
		return Failure(fmt.Sprintf("%s failed: %s", call.Name, err))
	}
	return result
}

// parseInput is a helper to unmarshal tool input, rejecting unknown fields
func parseInput(args json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return NewToolInputError(fmt.Errorf("invalid arguments: %w", err))
	}
	return nil
}
