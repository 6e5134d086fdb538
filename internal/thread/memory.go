package thread

import (
	"context"
	"fmt"
	"sync"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
)

// MemoryStore is a process-local Store, used when no persistent storage is configured
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]Snapshot
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]Snapshot)}
}

func (ms *MemoryStore) Get(_ context.Context, id string) (*Snapshot, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	snap, ok := ms.threads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	snap = cloneSnapshot(snap)
	return &snap, nil
}

func (ms *MemoryStore) Put(_ context.Context, snap Snapshot) error {
	if err := ValidateID(snap.ThreadID); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.threads[snap.ThreadID] = cloneSnapshot(snap)
	return nil
}

func (ms *MemoryStore) Delete(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.threads[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(ms.threads, id)
	return nil
}

func (ms *MemoryStore) List(_ context.Context) ([]Info, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	infos := make([]Info, 0, len(ms.threads))
	for _, snap := range ms.threads {
		infos = append(infos, snap.Info())
	}
	sortInfos(infos)
	return infos, nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := s
	out.Messages = make([]ai.Message, len(s.Messages))
	for i, m := range s.Messages {
		if m.ToolCalls != nil {
			m.ToolCalls = append([]ai.ToolCall(nil), m.ToolCalls...)
		}
		out.Messages[i] = m
	}
	out.Tasks.Tasks = append([]task.Task(nil), s.Tasks.Tasks...)
	return out
}
