// Package engine runs research turns against persisted threads: it loads a thread, runs the agent over the new user
// message and persists the result once the turn succeeds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cchalm/video-researcher/internal/agent"
	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
	"github.com/cchalm/video-researcher/internal/telemetry"
	"github.com/cchalm/video-researcher/internal/thread"
)

var (
	// ErrThreadBusy is returned when a turn or deletion targets a thread that already has a turn in flight
	ErrThreadBusy = errors.New("thread has a turn in progress")
	ErrEmptyInput = errors.New("user message is empty")
)

// TurnResult is the outcome of one successful turn
type TurnResult struct {
	ThreadID        string       `json:"thread_id"`
	TurnID          string       `json:"turn_id"`
	FinalAnswer     string       `json:"final_answer"`
	Messages        []ai.Message `json:"messages"`
	Tasks           []task.Task  `json:"tasks"`
	Steps           int          `json:"steps"`
	BudgetExhausted bool         `json:"budget_exhausted"`
}

// Runner executes turns. Turns on different threads run in parallel; turns on the same thread are rejected while
// one is in flight
type Runner struct {
	graph   *agent.Graph
	store   thread.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	busy map[string]struct{}
}

type Option func(*Runner)

func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func NewRunner(graph *agent.Graph, store thread.Store, opts ...Option) *Runner {
	r := &Runner{
		graph:  graph,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		busy:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = telemetry.DefaultMetrics()
	}
	return r
}

// CreateThread persists a new, empty thread and returns its snapshot
func (r *Runner) CreateThread(ctx context.Context) (*thread.Snapshot, error) {
	now := r.now().UTC()
	snap := thread.Snapshot{
		ThreadID:  telemetry.NewThreadID(),
		Messages:  []ai.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Put(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return &snap, nil
}

// RunTurn runs one turn of threadID with text as the new user message. An empty threadID starts a new thread; an
// unknown one is created on success. Nothing is persisted unless the turn succeeds
func (r *Runner) RunTurn(ctx context.Context, threadID, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if threadID == "" {
		threadID = telemetry.NewThreadID()
	}
	if err := thread.ValidateID(threadID); err != nil {
		return nil, err
	}

	release, err := r.acquire(threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	turnID := telemetry.NewTurnID()
	logger := r.logger.With("thread_id", threadID, "turn_id", turnID)
	logger.Info("turn started")

	result, err := r.runTurn(ctx, threadID, turnID, text)
	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "cancelled"
		}
		r.metrics.RecordTurn(ctx, status, 0, false)
		logger.Warn("turn failed, thread left unchanged", "status", status, "error", err)
		return nil, err
	}

	r.metrics.RecordTurn(ctx, "success", result.Steps, result.BudgetExhausted)
	logger.Info("turn finished", "steps", result.Steps, "budget_exhausted", result.BudgetExhausted,
		"tasks", len(result.Tasks))
	return result, nil
}

func (r *Runner) runTurn(ctx context.Context, threadID, turnID, text string) (*TurnResult, error) {
	snap, err := r.load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	tasks := task.RestoreStore(snap.Tasks)
	state := agent.State{
		ThreadID: threadID,
		Messages: append(append([]ai.Message(nil), snap.Messages...), ai.UserMessage(text)),
		Tasks:    tasks,
	}

	out, err := r.graph.Invoke(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("turn failed: %w", err)
	}

	snap.Messages = out.Messages
	snap.Tasks = tasks.Snapshot()
	snap.UpdatedAt = r.now().UTC()
	if err := r.store.Put(ctx, *snap); err != nil {
		return nil, fmt.Errorf("failed to persist thread: %w", err)
	}

	return &TurnResult{
		ThreadID:        threadID,
		TurnID:          turnID,
		FinalAnswer:     out.FinalAnswer,
		Messages:        out.Messages,
		Tasks:           snap.Tasks.Tasks,
		Steps:           out.Step,
		BudgetExhausted: out.BudgetExhausted,
	}, nil
}

// load returns the stored snapshot of threadID, or a fresh one if the thread has never been stored
func (r *Runner) load(ctx context.Context, threadID string) (*thread.Snapshot, error) {
	snap, err := r.store.Get(ctx, threadID)
	if errors.Is(err, thread.ErrNotFound) {
		now := r.now().UTC()
		return &thread.Snapshot{ThreadID: threadID, CreatedAt: now, UpdatedAt: now}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	return snap, nil
}

func (r *Runner) acquire(threadID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.busy[threadID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	}
	r.busy[threadID] = struct{}{}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.busy, threadID)
	}, nil
}

// Thread returns the persisted snapshot of threadID
func (r *Runner) Thread(ctx context.Context, threadID string) (*thread.Snapshot, error) {
	if err := thread.ValidateID(threadID); err != nil {
		return nil, err
	}
	return r.store.Get(ctx, threadID)
}

// Tasks returns the persisted task list of threadID and its summary
func (r *Runner) Tasks(ctx context.Context, threadID string) ([]task.Task, task.Counts, error) {
	snap, err := r.Thread(ctx, threadID)
	if err != nil {
		return nil, task.Counts{}, err
	}
	tasks := snap.Tasks.Tasks
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, task.Summarize(tasks), nil
}

func (r *Runner) ListThreads(ctx context.Context) ([]thread.Info, error) {
	return r.store.List(ctx)
}

// DeleteThread removes threadID. A thread with a turn in flight cannot be deleted
func (r *Runner) DeleteThread(ctx context.Context, threadID string) error {
	if err := thread.ValidateID(threadID); err != nil {
		return err
	}
	release, err := r.acquire(threadID)
	if err != nil {
		return err
	}
	defer release()
	return r.store.Delete(ctx, threadID)
}
