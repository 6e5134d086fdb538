package task

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrValidation is matched by every error describing a malformed task list
var ErrValidation = errors.New("invalid task list")

// ValidationError describes the first malformed item of a rejected replace
type ValidationError struct {
	Index  int
	Reason string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("task item %d %s", ve.Index, ve.Reason)
}

func (ve ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Store is the sole owner of one thread's task list. Replace swaps the whole list under a single lock, so Get only
// ever observes the initial list or the result of some completed Replace.
type Store struct {
	mu     sync.RWMutex
	tasks  []Task // never mutated after being stored
	nextID int

	now func() time.Time
}

// NewStore creates an empty task store
func NewStore() *Store {
	return &Store{now: time.Now}
}

// RestoreStore creates a store holding the contents of a previously taken snapshot
func RestoreStore(snap Snapshot) *Store {
	s := NewStore()
	s.tasks = cloneTasks(snap.Tasks)
	s.nextID = snap.NextID
	return s
}

// Get returns a copy of the current task list, in the order it was last written
func (s *Store) Get() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// Snapshot returns a serializable copy of the store
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Tasks: cloneTasks(s.tasks), NextID: s.nextID}
}

// Replace validates drafts and atomically swaps the entire task list for the normalized result. If any draft is
// invalid, or ctx is done before the swap, the previous list is left untouched and an error is returned.
//
// A draft whose ID matches a current task updates that task in place: its creation time is preserved and its update
// time changes only if the description, status or priority changed.
func (s *Store) Replace(ctx context.Context, drafts []Draft) ([]Task, Stats, error) {
	normalized, err := validateDrafts(drafts)
	if err != nil {
		return nil, Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]Task, len(s.tasks))
	for _, t := range s.tasks {
		existing[t.ID] = t
	}

	explicit := make(map[string]bool, len(normalized))
	nextID := s.nextID
	for _, d := range normalized {
		if d.ID == "" {
			continue
		}
		explicit[d.ID] = true
		if n, err := strconv.Atoi(d.ID); err == nil && n > nextID {
			nextID = n
		}
	}

	now := s.now()
	var stats Stats
	tasks := make([]Task, 0, len(normalized))
	for _, d := range normalized {
		id := d.ID
		if id == "" {
			for {
				nextID++
				id = strconv.Itoa(nextID)
				if !explicit[id] {
					break
				}
			}
		}

		t := Task{
			ID:          id,
			Description: d.Description,
			Status:      d.Status,
			Priority:    d.Priority,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if prev, ok := existing[id]; ok {
			t.CreatedAt = prev.CreatedAt
			if prev.Description == t.Description && prev.Status == t.Status && prev.Priority == t.Priority {
				t.UpdatedAt = prev.UpdatedAt
				stats.Unchanged++
			} else {
				stats.Updated++
			}
		} else {
			stats.Added++
		}
		tasks = append(tasks, t)
	}

	if err := ctx.Err(); err != nil {
		return nil, Stats{}, fmt.Errorf("task list not replaced: %w", err)
	}

	s.tasks = tasks
	s.nextID = nextID
	return cloneTasks(tasks), stats, nil
}

// validateDrafts checks every draft and fills in defaults. It has no side effects
func validateDrafts(drafts []Draft) ([]Draft, error) {
	out := make([]Draft, len(drafts))
	seen := make(map[string]int, len(drafts))
	for i, d := range drafts {
		if strings.TrimSpace(d.Description) == "" {
			return nil, ValidationError{Index: i, Reason: "missing required 'description' field"}
		}
		if d.Status == "" {
			d.Status = StatusPending
		} else if !d.Status.Valid() {
			return nil, ValidationError{
				Index:  i,
				Reason: fmt.Sprintf("has invalid status %q. Must be: pending, in_progress, or completed", d.Status),
			}
		}
		if d.Priority == "" {
			d.Priority = PriorityMedium
		} else if !d.Priority.Valid() {
			return nil, ValidationError{
				Index:  i,
				Reason: fmt.Sprintf("has invalid priority %q. Must be: low, medium, or high", d.Priority),
			}
		}
		if d.ID != "" {
			if first, dup := seen[d.ID]; dup {
				return nil, ValidationError{
					Index:  i,
					Reason: fmt.Sprintf("reuses id %q already given to task item %d", d.ID, first),
				}
			}
			seen[d.ID] = i
		}
		out[i] = d
	}
	return out, nil
}

func cloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	copy(out, in)
	return out
}
