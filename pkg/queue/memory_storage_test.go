package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

func newTask(handler string, priority queue.Priority) *queue.Task {
	now := time.Now()
	return &queue.Task{
		ID:                uuid.New(),
		Queue:             queue.DefaultQueueName,
		Handler:           handler,
		Payload:           []byte(`{"x":1}`),
		Status:            queue.StatusPending,
		Priority:          priority,
		MaxRetries:        3,
		MaxProcessingTime: time.Minute,
		ScheduledAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestMemoryStorage_EnqueueDequeue(t *testing.T) {
	t.Parallel()
	storage := queue.NewMemoryStorage()
	ctx := context.Background()

	t.Run("dequeues highest priority first", func(t *testing.T) {
		low := newTask("h", queue.Priority(1))
		high := newTask("h", queue.Priority(10))
		require.NoError(t, storage.Enqueue(ctx, low))
		require.NoError(t, storage.Enqueue(ctx, high))

		got, err := storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		require.NoError(t, err)
		assert.Equal(t, high.ID, got.ID)
		assert.Equal(t, queue.StatusProcessing, got.Status)
		require.NotNil(t, got.LockedUntil)
	})

	t.Run("returns ErrNoTaskToClaim when empty", func(t *testing.T) {
		empty := queue.NewMemoryStorage()
		_, err := empty.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("does not dequeue tasks scheduled in the future", func(t *testing.T) {
		empty := queue.NewMemoryStorage()
		task := newTask("h", queue.Priority(1))
		task.ScheduledAt = time.Now().Add(time.Hour)
		require.NoError(t, empty.Enqueue(ctx, task))

		_, err := empty.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("filters by queue", func(t *testing.T) {
		s := queue.NewMemoryStorage()
		other := newTask("h", queue.Priority(1))
		other.Queue = "other"
		require.NoError(t, s.Enqueue(ctx, other))

		_, err := s.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})
}

func TestMemoryStorage_UpdateTask(t *testing.T) {
	t.Parallel()
	storage := queue.NewMemoryStorage()
	ctx := context.Background()

	task := newTask("h", queue.Priority(0))
	require.NoError(t, storage.Enqueue(ctx, task))
	claimed, err := storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
	require.NoError(t, err)

	t.Run("valid transition processing -> done", func(t *testing.T) {
		done := queue.StatusDone
		updated, err := storage.UpdateTask(ctx, claimed.ID, queue.TaskUpdate{Status: &done})
		require.NoError(t, err)
		assert.Equal(t, queue.StatusDone, updated.Status)
		assert.NotNil(t, updated.ProcessedAt)
		assert.Nil(t, updated.LockedUntil)
	})

	t.Run("rejects invalid transition done -> processing", func(t *testing.T) {
		processing := queue.StatusProcessing
		_, err := storage.UpdateTask(ctx, claimed.ID, queue.TaskUpdate{Status: &processing})
		assert.Error(t, err)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := queue.StatusDone
		_, err := storage.UpdateTask(ctx, uuid.New(), queue.TaskUpdate{Status: &s})
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)
	})
}

func TestMemoryStorage_DeleteTask(t *testing.T) {
	t.Parallel()
	storage := queue.NewMemoryStorage()
	ctx := context.Background()

	task := newTask("h", queue.Priority(0))
	require.NoError(t, storage.Enqueue(ctx, task))

	t.Run("soft delete is idempotent", func(t *testing.T) {
		first, err := storage.DeleteTask(ctx, task.ID, false)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusDeleted, first.Status)

		second, err := storage.DeleteTask(ctx, task.ID, false)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusDeleted, second.Status)
	})

	t.Run("hard delete removes the task", func(t *testing.T) {
		other := newTask("h", queue.Priority(0))
		require.NoError(t, storage.Enqueue(ctx, other))
		_, err := storage.DeleteTask(ctx, other.ID, true)
		require.NoError(t, err)

		_, err = storage.GetTask(ctx, other.ID)
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)
	})
}

func TestMemoryStorage_ReclaimStuck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no-op when nothing has expired", func(t *testing.T) {
		storage := queue.NewMemoryStorage()
		task := newTask("h", queue.Priority(0))
		require.NoError(t, storage.Enqueue(ctx, task))
		_, err := storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		require.NoError(t, err)

		outcomes, err := storage.ReclaimStuck(ctx)
		require.NoError(t, err)
		assert.Empty(t, outcomes)
	})

	t.Run("retries a stuck task under its retry budget", func(t *testing.T) {
		storage := queue.NewMemoryStorage()
		task := newTask("h", queue.Priority(0))
		task.MaxRetries = 1
		task.MaxProcessingTime = time.Millisecond
		require.NoError(t, storage.Enqueue(ctx, task))
		_, err := storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		outcomes, err := storage.ReclaimStuck(ctx)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].Retried)
		assert.Equal(t, queue.StatusPending, outcomes[0].Task.Status)
	})

	t.Run("fails a stuck task once retries are exhausted", func(t *testing.T) {
		storage := queue.NewMemoryStorage()
		task := newTask("h", queue.Priority(0))
		task.MaxRetries = 0
		task.MaxProcessingTime = time.Millisecond
		require.NoError(t, storage.Enqueue(ctx, task))
		_, err := storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		outcomes, err := storage.ReclaimStuck(ctx)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.False(t, outcomes[0].Retried)
		assert.Equal(t, queue.StatusFailed, outcomes[0].Task.Status)
	})
}

func TestMemoryStorage_Stats(t *testing.T) {
	t.Parallel()
	storage := queue.NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, storage.Enqueue(ctx, newTask("a", 0)))
	require.NoError(t, storage.Enqueue(ctx, newTask("b", 0)))

	stats, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[queue.StatusPending])
}

func TestMemoryStorage_DLQ(t *testing.T) {
	t.Parallel()
	storage := queue.NewMemoryStorage()
	ctx := context.Background()

	task := newTask("h", queue.Priority(0))
	require.NoError(t, storage.Enqueue(ctx, task))

	entry, err := storage.MoveToDLQ(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, entry.TaskID)

	_, err = storage.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, queue.ErrTaskNotFound)

	all, err := storage.ListDLQ(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
