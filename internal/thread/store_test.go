package thread

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
)

func testSnapshot(id string, updated time.Time) Snapshot {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return Snapshot{
		ThreadID: id,
		Messages: []ai.Message{
			ai.UserMessage("Find trending cooking videos"),
			ai.AssistantMessage("", ai.ToolCall{ID: "c1", Name: "task_manager", Arguments: `{}`}),
			ai.ToolMessage(ai.ToolCall{ID: "c1", Name: "task_manager"}, `{"success":true,"data":[]}`, false),
			ai.AssistantMessage("Here is what I found."),
		},
		Tasks: task.Snapshot{
			Tasks: []task.Task{{
				ID: "1", Description: "Search #cooking", Status: task.StatusPending, Priority: task.PriorityHigh,
				CreatedAt: created, UpdatedAt: created,
			}},
			NextID: 2,
		},
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

// testStoreBehaviour runs the behaviour every Store implementation shares
func testStoreBehaviour(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		store := newStore(t)
		snap := testSnapshot("thread-a", t1)
		require.NoError(t, store.Put(ctx, snap))

		got, err := store.Get(ctx, "thread-a")
		require.NoError(t, err)
		assert.Equal(t, snap.ThreadID, got.ThreadID)
		assert.Equal(t, snap.Messages, got.Messages)
		assert.Equal(t, snap.Tasks.NextID, got.Tasks.NextID)
		require.Len(t, got.Tasks.Tasks, 1)
		assert.Equal(t, "Search #cooking", got.Tasks.Tasks[0].Description)
		assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("put replaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, testSnapshot("thread-a", t1)))
		next := testSnapshot("thread-a", t2)
		next.Messages = next.Messages[:1]
		require.NoError(t, store.Put(ctx, next))

		got, err := store.Get(ctx, "thread-a")
		require.NoError(t, err)
		assert.Len(t, got.Messages, 1)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, testSnapshot("thread-a", t1)))

		require.NoError(t, store.Delete(ctx, "thread-a"))
		_, err := store.Get(ctx, "thread-a")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "thread-a"), ErrNotFound)
	})

	t.Run("list most recent first", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, testSnapshot("older", t1)))
		require.NoError(t, store.Put(ctx, testSnapshot("newer", t2)))

		infos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "newer", infos[0].ThreadID)
		assert.Equal(t, "older", infos[1].ThreadID)
		assert.Equal(t, 4, infos[0].MessageCount)
		assert.Equal(t, 1, infos[0].TaskCount)
	})

	t.Run("rejects invalid id", func(t *testing.T) {
		store := newStore(t)
		assert.ErrorIs(t, store.Put(ctx, testSnapshot("../escape", t1)), ErrInvalidID)
	})
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"a", "thread-1", "3f2b9c1e-0000-4000-8000-000000000000", "under_score"} {
		assert.NoError(t, ValidateID(id), id)
	}
	for _, id := range []string{"", "-leading", "has space", "../etc", "a/b", "dot.json"} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, id)
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreBehaviour(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	snap := testSnapshot("thread-a", time.Now())
	require.NoError(t, store.Put(ctx, snap))

	snap.Messages[0].Content = "mutated after put"
	got, err := store.Get(ctx, "thread-a")
	require.NoError(t, err)
	got.Tasks.Tasks[0].Description = "mutated after get"

	again, err := store.Get(ctx, "thread-a")
	require.NoError(t, err)
	assert.Equal(t, "Find trending cooking videos", again.Messages[0].Content)
	assert.Equal(t, "Search #cooking", again.Tasks.Tasks[0].Description)
}
