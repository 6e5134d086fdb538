package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/cchalm/video-researcher"

// Metrics holds the agent's metric instruments. All fields are safe for concurrent use
type Metrics struct {
	// LLMDuration tracks model call latency. Attributes: model, status
	LLMDuration metric.Float64Histogram

	// LLMTokens counts tokens. Attributes: model, direction (input|output)
	LLMTokens metric.Int64Counter

	// ToolDuration tracks tool call latency. Attributes: tool
	ToolDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Attributes: tool, status (success|error)
	ToolCalls metric.Int64Counter

	// TurnSteps records the number of REASON steps each completed turn took
	TurnSteps metric.Int64Histogram

	// TurnBudgetExhausted counts turns that ended because the step limit was reached
	TurnBudgetExhausted metric.Int64Counter

	// Turns counts turns. Attributes: status (success|error|cancelled)
	Turns metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds, sized for model and web API calls
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

var stepBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 34}

// NewMetrics creates the instruments on the given MeterProvider
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("video_researcher.llm.duration",
		metric.WithDescription("Latency of model calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMTokens, err = m.Int64Counter("video_researcher.llm.tokens",
		metric.WithDescription("Tokens consumed by model calls by direction."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("video_researcher.tool.duration",
		metric.WithDescription("Latency of tool calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("video_researcher.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.TurnSteps, err = m.Int64Histogram("video_researcher.turn.steps",
		metric.WithDescription("Reasoning steps per completed turn."),
		metric.WithExplicitBucketBoundaries(stepBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnBudgetExhausted, err = m.Int64Counter("video_researcher.turn.budget_exhausted",
		metric.WithDescription("Turns that were forced to a final answer by the step limit."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("video_researcher.turns",
		metric.WithDescription("Total turns by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics, created on first use from the global MeterProvider
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("telemetry: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordLLMCall(ctx context.Context, model string, d time.Duration, usageIn, usageOut int64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LLMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	))
	if err == nil {
		m.LLMTokens.Add(ctx, usageIn, metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "input")))
		m.LLMTokens.Add(ctx, usageOut, metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "output")))
	}
}

func (m *Metrics) RecordToolCall(ctx context.Context, tool string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ToolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
}

// RecordTurn records the outcome of a turn. steps and budgetExhausted are only meaningful for successful turns
func (m *Metrics) RecordTurn(ctx context.Context, status string, steps int, budgetExhausted bool) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if status != "success" {
		return
	}
	m.TurnSteps.Record(ctx, int64(steps))
	if budgetExhausted {
		m.TurnBudgetExhausted.Add(ctx, 1)
	}
}
