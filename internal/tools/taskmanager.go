package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
)

const TaskManagerToolName = "task_manager"

// TaskManagerTool reads or replaces the thread's task list. Called without tasks (absent, null or empty) it reports
// the current list; called with tasks it replaces the whole list
type TaskManagerTool struct{}

type taskManagerInput struct {
	Tasks []taskItemInput `json:"tasks"`
}

type taskItemInput struct {
	ID          flexibleID    `json:"id,omitempty"`
	Description string        `json:"description,omitempty"`
	Content     string        `json:"content,omitempty"` // accepted as an alias of description
	Status      task.Status   `json:"status,omitempty"`
	Priority    task.Priority `json:"priority,omitempty"`
}

// flexibleID accepts task ids given as either JSON strings or numbers
type flexibleID string

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*id = flexibleID(n.String())
	return nil
}

func (t *TaskManagerTool) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name: TaskManagerToolName,
		Description: "Manage the research task list. Call with no tasks to view the current list. " +
			"Call with the complete list of tasks to replace it: items with an existing id update that task, " +
			"items without an id are created, and tasks left out are removed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tasks": map[string]any{
					"type":        "array",
					"description": "The complete task list. Omit or leave empty to view the current list.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id": map[string]any{
								"type":        "string",
								"description": "Id of an existing task to update. Omit for new tasks.",
							},
							"description": map[string]any{
								"type":        "string",
								"description": "What needs to be done",
							},
							"status": map[string]any{
								"type": "string",
								"enum": []string{"pending", "in_progress", "completed"},
							},
							"priority": map[string]any{
								"type": "string",
								"enum": []string{"low", "medium", "high"},
							},
						},
						"required": []string{"description"},
					},
				},
			},
		},
	}
}

func (t *TaskManagerTool) Run(ctx context.Context, args json.RawMessage, toolCtx *ToolContext) (Result, error) {
	if toolCtx == nil || toolCtx.Tasks == nil {
		return Result{}, fmt.Errorf("no task store bound to this thread")
	}

	var input taskManagerInput
	if err := parseInput(args, &input); err != nil {
		return Result{}, err
	}

	if len(input.Tasks) == 0 {
		return inspectResult(toolCtx.Tasks.Get()), nil
	}

	drafts := make([]task.Draft, len(input.Tasks))
	for i, item := range input.Tasks {
		description := item.Description
		if description == "" {
			description = item.Content
		}
		drafts[i] = task.Draft{
			ID:          string(item.ID),
			Description: description,
			Status:      item.Status,
			Priority:    item.Priority,
		}
	}

	tasks, stats, err := toolCtx.Tasks.Replace(ctx, drafts)
	if err != nil {
		if ctx.Err() == nil {
			return Result{}, NewToolInputError(err)
		}
		return Result{}, err
	}

	counts := task.Summarize(tasks)
	return Success(tasks, map[string]any{
		"summary": counts.String(),
		"counts":  counts,
		"stats":   stats,
		"message": updateMessage(stats, counts),
	}), nil
}

func inspectResult(tasks []task.Task) Result {
	counts := task.Summarize(tasks)
	return Success(tasks, map[string]any{
		"summary": counts.String(),
		"counts":  counts,
	})
}

// updateMessage describes a replace, e.g.
// "Task list updated. Added 2 new tasks, 1 task unchanged. Status: 3 pending, 0 in progress, 0 completed (0.0% complete)"
func updateMessage(stats task.Stats, counts task.Counts) string {
	var parts []string
	if stats.Added > 0 {
		parts = append(parts, fmt.Sprintf("Added %d new %s", stats.Added, plural(stats.Added, "task")))
	}
	if stats.Updated > 0 {
		parts = append(parts, fmt.Sprintf("Updated %d %s", stats.Updated, plural(stats.Updated, "task")))
	}
	if stats.Unchanged > 0 {
		parts = append(parts, fmt.Sprintf("%d %s unchanged", stats.Unchanged, plural(stats.Unchanged, "task")))
	}
	return fmt.Sprintf("Task list updated. %s. Status: %s", strings.Join(parts, ", "), counts.StatusLine())
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
