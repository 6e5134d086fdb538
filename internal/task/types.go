// Package task models the per-thread task list that the research agent plans its work with.
package task

import "time"

// Status is the lifecycle state of a task. Transitions are entirely caller-directed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority is a caller-assigned importance level
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a validated task record as held by a Store
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Draft is a task record as supplied by a caller, before validation. Empty Status and Priority take the defaults
// (pending, medium) and an empty ID is assigned by the store.
type Draft struct {
	ID          string   `json:"id,omitempty"`
	Description string   `json:"description"`
	Status      Status   `json:"status,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

// Stats describes how a replace changed the list relative to the previous one
type Stats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Snapshot is a serializable copy of a Store's contents, used to persist the task list between turns
type Snapshot struct {
	Tasks  []Task `json:"tasks"`
	NextID int    `json:"next_id"`
}
