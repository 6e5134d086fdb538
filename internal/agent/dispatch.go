package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/telemetry"
	"github.com/cchalm/video-researcher/internal/tools"
)

// act runs every tool call of one step concurrently and returns one observation per call, in call order regardless
// of completion order
func (g *Graph) act(ctx context.Context, calls []ai.ToolCall, toolCtx *tools.ToolContext) []ai.Message {
	results := make([]tools.Result, len(calls))

	// Tool failures are reported as results, so the group never observes an error
	var eg errgroup.Group
	eg.SetLimit(g.maxParallel)
	for i, call := range calls {
		eg.Go(func() error {
			results[i] = g.runTool(ctx, call, toolCtx)
			return nil
		})
	}
	_ = eg.Wait()

	observations := make([]ai.Message, len(calls))
	for i, call := range calls {
		observations[i] = ai.ToolMessage(call, results[i].String(), !results[i].Success)
	}
	return observations
}

func (g *Graph) runTool(ctx context.Context, call ai.ToolCall, toolCtx *tools.ToolContext) tools.Result {
	ctx, span := telemetry.StartSpan(ctx, "agent.tool")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	)

	start := time.Now()
	result := g.registry.ProcessToolCall(ctx, call, toolCtx)
	elapsed := time.Since(start)

	g.metrics.RecordToolCall(ctx, call.Name, result.Success, elapsed)
	span.SetAttributes(attribute.Bool("tool.success", result.Success))
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	}
	telemetry.Logger(ctx, g.logger).Debug("tool call finished",
		"tool", call.Name, "call_id", call.ID, "success", result.Success, "duration", elapsed)
	return result
}
