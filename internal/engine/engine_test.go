package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/cchalm/video-researcher/internal/agent"
	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/ai/aitest"
	"github.com/cchalm/video-researcher/internal/telemetry"
	"github.com/cchalm/video-researcher/internal/thread"
	"github.com/cchalm/video-researcher/internal/tools"
)

func newTestRunner(t *testing.T, model ai.Model, store thread.Store) *Runner {
	t.Helper()
	registry, err := tools.NewToolRegistry([]tools.Tool{&tools.TaskManagerTool{}})
	require.NoError(t, err)
	metrics, err := telemetry.NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	graph := agent.NewGraph(model, registry,
		agent.WithMetrics(metrics),
		agent.WithSystemPrompt(func(time.Time) (string, error) { return "system", nil }),
	)
	return NewRunner(graph, store, WithMetrics(metrics))
}

func planTasks(descriptions ...string) aitest.Step {
	args := `{"tasks":[`
	for i, d := range descriptions {
		if i > 0 {
			args += ","
		}
		args += `{"description":"` + d + `"}`
	}
	args += `]}`
	return aitest.CallTools("", ai.ToolCall{ID: "plan", Name: "task_manager", Arguments: args})
}

func TestRunTurn_NewThread(t *testing.T) {
	store := thread.NewMemoryStore()
	runner := newTestRunner(t, aitest.NewScriptedModel(aitest.Reply("Hi! What should I research?")), store)

	result, err := runner.RunTurn(context.Background(), "", "hello")

	require.NoError(t, err)
	assert.NotEmpty(t, result.ThreadID)
	assert.NotEmpty(t, result.TurnID)
	assert.Equal(t, "Hi! What should I research?", result.FinalAnswer)
	assert.Equal(t, 1, result.Steps)
	assert.Empty(t, result.Tasks)

	snap, err := store.Get(context.Background(), result.ThreadID)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "hello", snap.Messages[0].Content)
}

func TestRunTurn_CarriesHistoryAndTasksAcrossTurns(t *testing.T) {
	store := thread.NewMemoryStore()
	model := aitest.NewScriptedModel(
		planTasks("Search #cooking", "Summarize findings"),
		aitest.Reply("Planned."),
		aitest.CallTools("", ai.ToolCall{ID: "check", Name: "task_manager", Arguments: `{}`}),
		aitest.Reply("Two tasks are pending."),
	)
	runner := newTestRunner(t, model, store)
	ctx := context.Background()

	first, err := runner.RunTurn(ctx, "thread-1", "plan cooking research")
	require.NoError(t, err)
	require.Len(t, first.Tasks, 2)

	second, err := runner.RunTurn(ctx, "thread-1", "what is left?")
	require.NoError(t, err)
	assert.Equal(t, "Two tasks are pending.", second.FinalAnswer)

	// The third request starts from the full first turn plus the new message
	third := model.Requests()[2]
	require.Len(t, third.Messages, 5)
	assert.Equal(t, "what is left?", third.Messages[4].Content)

	var inspect ai.Message
	for _, m := range second.Messages {
		if m.ToolCallID == "check" {
			inspect = m
		}
	}
	assert.Contains(t, inspect.Content, "Search #cooking")

	tasks, counts, err := runner.Tasks(ctx, "thread-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Equal(t, "2 tasks: 2 pending, 0 in progress, 0 completed (0.0% complete)", counts.String())
}

func TestRunTurn_FailedTurnPersistsNothing(t *testing.T) {
	store := thread.NewMemoryStore()
	errBoom := errors.New("model overloaded")
	model := aitest.NewScriptedModel(
		aitest.Reply("Hello."),
		planTasks("Should not survive"),
		aitest.Fail(errBoom),
	)
	runner := newTestRunner(t, model, store)
	ctx := context.Background()

	_, err := runner.RunTurn(ctx, "thread-1", "hi")
	require.NoError(t, err)
	before, err := store.Get(ctx, "thread-1")
	require.NoError(t, err)

	_, err = runner.RunTurn(ctx, "thread-1", "plan something")

	assert.ErrorIs(t, err, errBoom)
	after, err := store.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, before.Messages, after.Messages)
	assert.Empty(t, after.Tasks.Tasks)
}

func TestRunTurn_CancelledTurnPersistsNothing(t *testing.T) {
	store := thread.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	model := aitest.NewScriptedModel(func(ctx context.Context, _ ai.Request) (*ai.Response, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	runner := newTestRunner(t, model, store)

	_, err := runner.RunTurn(ctx, "thread-1", "hi")

	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Get(context.Background(), "thread-1")
	assert.ErrorIs(t, err, thread.ErrNotFound)
}

func TestRunTurn_RejectsConcurrentTurnOnSameThread(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	model := aitest.NewScriptedModel(
		func(context.Context, ai.Request) (*ai.Response, error) {
			close(started)
			<-release
			return &ai.Response{Message: ai.AssistantMessage("first")}, nil
		},
		aitest.Reply("other thread"),
		aitest.Reply("after release"),
	)
	runner := newTestRunner(t, model, thread.NewMemoryStore())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := runner.RunTurn(ctx, "busy", "one")
		done <- err
	}()
	<-started

	_, err := runner.RunTurn(ctx, "busy", "two")
	assert.ErrorIs(t, err, ErrThreadBusy)
	assert.ErrorIs(t, runner.DeleteThread(ctx, "busy"), ErrThreadBusy)

	other, err := runner.RunTurn(ctx, "other", "hello")
	require.NoError(t, err)
	assert.Equal(t, "other thread", other.FinalAnswer)

	close(release)
	require.NoError(t, <-done)

	result, err := runner.RunTurn(ctx, "busy", "three")
	require.NoError(t, err)
	assert.Equal(t, "after release", result.FinalAnswer)
}

func TestRunTurn_RejectsEmptyInput(t *testing.T) {
	model := aitest.NewScriptedModel()
	runner := newTestRunner(t, model, thread.NewMemoryStore())

	_, err := runner.RunTurn(context.Background(), "thread-1", "   ")

	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, model.Calls())
}

func TestRunTurn_RejectsInvalidThreadID(t *testing.T) {
	runner := newTestRunner(t, aitest.NewScriptedModel(), thread.NewMemoryStore())

	_, err := runner.RunTurn(context.Background(), "../../etc/passwd", "hi")

	assert.ErrorIs(t, err, thread.ErrInvalidID)
}

func TestCreateThreadAndDelete(t *testing.T) {
	store := thread.NewMemoryStore()
	runner := newTestRunner(t, aitest.NewScriptedModel(), store)
	ctx := context.Background()

	snap, err := runner.CreateThread(ctx)
	require.NoError(t, err)

	got, err := runner.Thread(ctx, snap.ThreadID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)

	infos, err := runner.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	require.NoError(t, runner.DeleteThread(ctx, snap.ThreadID))
	_, err = runner.Thread(ctx, snap.ThreadID)
	assert.ErrorIs(t, err, thread.ErrNotFound)
}

func TestTasks_EmptyThread(t *testing.T) {
	runner := newTestRunner(t, aitest.NewScriptedModel(), thread.NewMemoryStore())
	snap, err := runner.CreateThread(context.Background())
	require.NoError(t, err)

	tasks, counts, err := runner.Tasks(context.Background(), snap.ThreadID)

	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
	assert.Equal(t, "0 tasks", counts.String())
}
