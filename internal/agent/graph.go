package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/telemetry"
	"github.com/cchalm/video-researcher/internal/tools"
)

// DefaultMaxParallelTools bounds how many tool calls of a single step run at once
const DefaultMaxParallelTools = 4

// DefaultMaxTokens is the per-response output token limit
const DefaultMaxTokens int64 = 8192

// StepLimitAnswer replaces an empty forced final answer
const StepLimitAnswer = "I reached the step limit for this turn before I could finish. " +
	"Ask me to continue and I will pick up from the current task list."

// ErrNoMessages is returned when a turn is invoked without any conversation to reason over
var ErrNoMessages = errors.New("agent: no messages to reason over")

// Graph runs the reason-act loop for a single turn. It holds no per-thread state and is safe for concurrent use
// across threads
type Graph struct {
	model    ai.Model
	registry *tools.ToolRegistry

	guard        StepGuard
	maxParallel  int
	maxTokens    int64
	systemPrompt func(time.Time) (string, error)
	now          func() time.Time
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

type Option func(*Graph)

// WithMaxSteps sets the number of reasoning steps allowed per turn
func WithMaxSteps(n int) Option {
	return func(g *Graph) { g.guard = StepGuard{MaxSteps: n} }
}

// WithMaxParallelTools sets how many tool calls of one step may run concurrently
func WithMaxParallelTools(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxParallel = n
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithSystemPrompt overrides the system prompt renderer. It is called once per turn with the current time
func WithSystemPrompt(fn func(time.Time) (string, error)) Option {
	return func(g *Graph) { g.systemPrompt = fn }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

func withClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

func NewGraph(model ai.Model, registry *tools.ToolRegistry, opts ...Option) *Graph {
	g := &Graph{
		model:        model,
		registry:     registry,
		guard:        StepGuard{MaxSteps: DefaultMaxSteps},
		maxParallel:  DefaultMaxParallelTools,
		maxTokens:    DefaultMaxTokens,
		systemPrompt: ai.SystemPrompt,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = telemetry.DefaultMetrics()
	}
	return g
}

// MaxSteps returns the configured step limit
func (g *Graph) MaxSteps() int {
	return g.guard.maxSteps()
}

// Invoke runs one turn over state, which must already end with the new user message. It returns the updated state;
// the input state's message slice is never modified. On error the returned state reflects progress up to the
// failure and should not be persisted
func (g *Graph) Invoke(ctx context.Context, state State) (State, error) {
	if len(state.Messages) == 0 {
		return state, ErrNoMessages
	}

	ctx, span := telemetry.StartSpan(ctx, "agent.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("thread.id", state.ThreadID),
		attribute.String("model", g.model.Name()),
		attribute.Int("agent.max_steps", g.guard.maxSteps()),
	)

	out, err := g.run(ctx, state)
	span.SetAttributes(attribute.Int("agent.steps", out.Step))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetAttributes(attribute.Bool("agent.budget_exhausted", out.BudgetExhausted))
	return out, nil
}

func (g *Graph) run(ctx context.Context, in State) (State, error) {
	logger := telemetry.Logger(ctx, g.logger).With("thread_id", in.ThreadID)

	state := in
	state.Messages = cloneMessages(in.Messages)
	state.Step = 0
	state.FinalAnswer = ""
	state.BudgetExhausted = false
	state.IsLastStep = false

	system, err := g.systemPrompt(g.now())
	if err != nil {
		return state, fmt.Errorf("failed to render system prompt: %w", err)
	}
	toolCtx := &tools.ToolContext{ThreadID: state.ThreadID, Tasks: state.Tasks}

	for step := 1; ; step++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		state.Step = step
		state.IsLastStep = g.guard.IsLastStep(step)

		msg, err := g.reason(ctx, system, state.Messages, step, state.IsLastStep)
		if err != nil {
			return state, fmt.Errorf("step %d: %w", step, err)
		}

		if state.IsLastStep {
			state.BudgetExhausted = true
			if len(msg.ToolCalls) > 0 {
				logger.Warn("model requested tools on the final step, discarding them",
					"step", step, "tool_calls", len(msg.ToolCalls))
				msg.ToolCalls = nil
			}
			if msg.Content == "" {
				msg.Content = StepLimitAnswer
			}
		}
		state.Messages = append(state.Messages, msg)

		if len(msg.ToolCalls) == 0 {
			state.FinalAnswer = msg.Content
			logger.Info("turn complete", "steps", step, "budget_exhausted", state.BudgetExhausted)
			return state, nil
		}

		logger.Debug("executing tool calls", "step", step, "tool_calls", len(msg.ToolCalls))
		observations := g.act(ctx, msg.ToolCalls, toolCtx)
		if err := ctx.Err(); err != nil {
			// Observations gathered under a cancelled context are incomplete and not folded in
			return state, err
		}
		state.Messages = append(state.Messages, observations...)
	}
}

// reason asks the model for the next assistant message
func (g *Graph) reason(ctx context.Context, system string, messages []ai.Message, step int, isLast bool) (ai.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "agent.reason")
	defer span.End()

	choice := ai.ToolChoiceAuto
	if isLast {
		choice = ai.ToolChoiceNone
	}
	span.SetAttributes(
		attribute.Int("agent.step", step),
		attribute.Bool("agent.is_last_step", isLast),
	)

	req := ai.Request{
		System:     system,
		Messages:   messages,
		Tools:      g.registry.Definitions(),
		ToolChoice: choice,
		MaxTokens:  g.maxTokens,
	}

	start := time.Now()
	resp, err := g.model.Generate(ctx, req)
	var usage ai.Usage
	if resp != nil {
		usage = resp.Usage
	}
	g.metrics.RecordLLMCall(ctx, g.model.Name(), time.Since(start), usage.InputTokens, usage.OutputTokens, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ai.Message{}, fmt.Errorf("model call failed: %w", err)
	}
	if resp == nil {
		return ai.Message{}, errors.New("model returned no response")
	}

	msg := resp.Message
	msg.Role = ai.RoleAssistant
	if len(msg.ToolCalls) > 0 {
		calls := make([]ai.ToolCall, len(msg.ToolCalls))
		for i, call := range msg.ToolCalls {
			if call.ID == "" {
				call.ID = telemetry.NewToolCallID()
			}
			calls[i] = call
		}
		msg.ToolCalls = calls
	}
	span.SetAttributes(
		attribute.Int("agent.tool_calls", len(msg.ToolCalls)),
		attribute.String("llm.stop_reason", resp.StopReason),
	)
	return msg, nil
}
