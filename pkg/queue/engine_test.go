package queue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

func TestEngine_AddTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("enqueues and emits EventTaskAdded", func(t *testing.T) {
		engine, err := queue.NewEngine(queue.NewMemoryStorage())
		require.NoError(t, err)

		var got queue.Event
		var mu sync.Mutex
		engine.On(queue.EventTaskAdded, func(e queue.Event) {
			mu.Lock()
			defer mu.Unlock()
			got = e
		})

		task, err := engine.AddTask(ctx, "greet", map[string]string{"name": "ada"})
		require.NoError(t, err)
		assert.Equal(t, queue.StatusPending, task.Status)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, queue.EventTaskAdded, got.Name)
		require.NotNil(t, got.Task)
		assert.Equal(t, task.ID, got.Task.ID)
	})

	t.Run("rejects nil payload", func(t *testing.T) {
		engine, err := queue.NewEngine(queue.NewMemoryStorage())
		require.NoError(t, err)

		_, err = engine.AddTask(ctx, "greet", nil)
		assert.ErrorIs(t, err, queue.ErrPayloadNil)
	})

	t.Run("rejects retries above HardMaxRetries", func(t *testing.T) {
		engine, err := queue.NewEngine(queue.NewMemoryStorage())
		require.NoError(t, err)

		_, err = engine.AddTask(ctx, "greet", map[string]string{"a": "b"},
			queue.WithTaskMaxRetries(queue.HardMaxRetries+1))
		assert.ErrorIs(t, err, queue.ErrMaxRetriesLimitError)
	})

	t.Run("requires registered handler when opted in", func(t *testing.T) {
		engine, err := queue.NewEngine(queue.NewMemoryStorage())
		require.NoError(t, err)

		_, err = engine.AddTask(ctx, "unregistered", map[string]string{"a": "b"},
			queue.WithRequireRegisteredHandler())
		assert.ErrorIs(t, err, queue.ErrHandlerNotRegistered)
	})

	t.Run("auto-validates against a typed handler's fields", func(t *testing.T) {
		engine, err := queue.NewEngine(queue.NewMemoryStorage())
		require.NoError(t, err)

		type greetPayload struct {
			Name string `json:"name"`
		}
		require.NoError(t, engine.Register(queue.NewTaskHandler(func(ctx context.Context, p greetPayload) error {
			return nil
		})))

		_, err = engine.AddTask(ctx, "queue_test.greetPayload", map[string]string{"other": "field"})
		assert.ErrorIs(t, err, queue.ErrInvalidPayload)

		_, err = engine.AddTask(ctx, "queue_test.greetPayload", greetPayload{Name: "ada"})
		assert.NoError(t, err)
	})
}

func TestEngine_UpdateTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	engine, err := queue.NewEngine(queue.NewMemoryStorage())
	require.NoError(t, err)

	task, err := engine.AddTask(ctx, "h", map[string]string{"a": "b"})
	require.NoError(t, err)

	claimed, err := engine.Dequeue(ctx, task.ID, []string{queue.DefaultQueueName})
	require.NoError(t, err)
	require.NotNil(t, claimed)

	var completed bool
	engine.On(queue.EventTaskCompleted, func(e queue.Event) { completed = true })

	done := queue.StatusDone
	_, err = engine.UpdateTask(ctx, claimed.ID, queue.TaskUpdate{Status: &done})
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestEngine_DeleteTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	engine, err := queue.NewEngine(queue.NewMemoryStorage())
	require.NoError(t, err)

	task, err := engine.AddTask(ctx, "h", map[string]string{"a": "b"})
	require.NoError(t, err)

	var removedCount int
	engine.On(queue.EventTaskRemoved, func(e queue.Event) { removedCount++ })

	_, err = engine.DeleteTask(ctx, task.ID, false)
	require.NoError(t, err)
	_, err = engine.DeleteTask(ctx, task.ID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, removedCount, "soft-deleting an already-deleted task must not re-emit EventTaskRemoved")
}

func TestEngine_MoveToDLQ(t *testing.T) {
	t.Parallel()

	engine, err := queue.NewEngine(queue.NewMemoryStorage())
	require.NoError(t, err)

	// MemoryStorage implements DLQStorage, so exercise the happy path here;
	// filestore's own tests cover the same capability on that backend.
	ctx := context.Background()
	task, err := engine.AddTask(ctx, "h", map[string]string{"a": "b"})
	require.NoError(t, err)

	entry, err := engine.MoveToDLQ(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, entry.TaskID)

	list, err := engine.ListDLQ(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
