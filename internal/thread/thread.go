// Package thread persists conversation threads between turns
package thread

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
)

var (
	ErrNotFound  = errors.New("thread not found")
	ErrInvalidID = errors.New("invalid thread id")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidateID checks that id is usable as a thread key in every store, including as a file name
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Snapshot is the persisted state of a thread as of the end of its last successful turn
type Snapshot struct {
	ThreadID  string        `json:"thread_id"`
	Messages  []ai.Message  `json:"messages"`
	Tasks     task.Snapshot `json:"tasks"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Info summarizes a stored thread
type Info struct {
	ThreadID     string    `json:"thread_id"`
	MessageCount int       `json:"message_count"`
	TaskCount    int       `json:"task_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s Snapshot) Info() Info {
	return Info{
		ThreadID:     s.ThreadID,
		MessageCount: len(s.Messages),
		TaskCount:    len(s.Tasks.Tasks),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Store manages persistent storage of thread snapshots
type Store interface {
	// Get returns the snapshot stored for id, or ErrNotFound
	Get(ctx context.Context, id string) (*Snapshot, error)
	// Put stores snap under snap.ThreadID, replacing any previous snapshot
	Put(ctx context.Context, snap Snapshot) error
	// Delete removes the thread, or returns ErrNotFound
	Delete(ctx context.Context, id string) error
	// List returns every stored thread, most recently updated first
	List(ctx context.Context) ([]Info, error)
}

func sortInfos(infos []Info) {
	slices.SortStableFunc(infos, func(a, b Info) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.ThreadID < b.ThreadID {
			return -1
		} else if a.ThreadID > b.ThreadID {
			return 1
		}
		return 0
	})
}
