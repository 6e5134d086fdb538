package task

import "fmt"

// PriorityCounts counts tasks per priority
type PriorityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Counts summarizes a task list by status and priority
type Counts struct {
	Total                int            `json:"total"`
	Pending              int            `json:"pending"`
	InProgress           int            `json:"in_progress"`
	Completed            int            `json:"completed"`
	ByPriority           PriorityCounts `json:"by_priority"`
	CompletionPercentage float64        `json:"completion_percentage"`
}

// Summarize counts tasks by status and priority
func Summarize(tasks []Task) Counts {
	var c Counts
	for _, t := range tasks {
		c.Total++
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		}
		switch t.Priority {
		case PriorityLow:
			c.ByPriority.Low++
		case PriorityMedium:
			c.ByPriority.Medium++
		case PriorityHigh:
			c.ByPriority.High++
		}
	}
	if c.Total > 0 {
		c.CompletionPercentage = float64(c.Completed) / float64(c.Total) * 100
	}
	return c
}

// String renders a one-line human-readable summary, e.g.
// "3 tasks: 1 pending, 1 in progress, 1 completed (33.3% complete)"
func (c Counts) String() string {
	if c.Total == 0 {
		return "0 tasks"
	}
	noun := "tasks"
	if c.Total == 1 {
		noun = "task"
	}
	return fmt.Sprintf("%d %s: %s", c.Total, noun, c.StatusLine())
}

// StatusLine renders the per-status part of the summary
func (c Counts) StatusLine() string {
	return fmt.Sprintf("%d pending, %d in progress, %d completed (%.1f%% complete)",
		c.Pending, c.InProgress, c.Completed, c.CompletionPercentage)
}
