package filestore_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennyh960/queue-manager/pkg/queue"
	"github.com/bennyh960/queue-manager/pkg/queue/filestore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects a non-.json path", func(t *testing.T) {
		_, err := filestore.New(filepath.Join(t.TempDir(), "store.txt"), 1, testLogger())
		assert.ErrorIs(t, err, queue.ErrInvalidFileExtension)
	})

	t.Run("creates the file when missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "store.json")
		_, err := filestore.New(path, 1, testLogger())
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("reopens an existing store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "store.json")
		first, err := filestore.New(path, 1, testLogger())
		require.NoError(t, err)
		require.NoError(t, first.Enqueue(context.Background(), newTask("h", 0)))

		second, err := filestore.New(path, 1, testLogger())
		require.NoError(t, err)
		stats, err := second.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
	})

	t.Run("rejects a corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "store.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

		_, err := filestore.New(path, 1, testLogger())
		assert.ErrorIs(t, err, queue.ErrCorruptFile)
	})
}

func TestFileStorage_EnqueueDequeue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	storage, err := filestore.New(path, 1, testLogger())
	require.NoError(t, err)

	low := newTask("h", queue.Priority(1))
	high := newTask("h", queue.Priority(10))
	require.NoError(t, storage.Enqueue(ctx, low))
	require.NoError(t, storage.Enqueue(ctx, high))

	got, err := storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
	require.NoError(t, err)
	assert.Equal(t, high.ID, got.ID)
	assert.Equal(t, queue.StatusProcessing, got.Status)
	require.NotNil(t, got.LockedUntil)

	// Survives a reload from disk.
	reopened, err := filestore.New(path, 1, testLogger())
	require.NoError(t, err)
	reloaded, err := reopened.GetTask(ctx, high.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusProcessing, reloaded.Status)
}

func TestFileStorage_NoTaskToClaim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	storage, err := filestore.New(path, 1, testLogger())
	require.NoError(t, err)

	_, err = storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
}

func TestFileStorage_UpdateTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	storage, err := filestore.New(path, 1, testLogger())
	require.NoError(t, err)

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

func TestFileStorage_DeleteTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	storage, err := filestore.New(path, 1, testLogger())
	require.NoError(t, err)

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

func TestFileStorage_ReclaimStuck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("retries a stuck task under its retry budget", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "store.json")
		storage, err := filestore.New(path, 1, testLogger())
		require.NoError(t, err)

		task := newTask("h", queue.Priority(0))
		task.MaxRetries = 1
		task.MaxProcessingTime = time.Millisecond
		require.NoError(t, storage.Enqueue(ctx, task))
		_, err = storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		outcomes, err := storage.ReclaimStuck(ctx)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].Retried)
		assert.Equal(t, queue.StatusPending, outcomes[0].Task.Status)
	})

	t.Run("fails a stuck task once retries are exhausted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "store.json")
		storage, err := filestore.New(path, 1, testLogger())
		require.NoError(t, err)

		task := newTask("h", queue.Priority(0))
		task.MaxRetries = 0
		task.MaxProcessingTime = time.Millisecond
		require.NoError(t, storage.Enqueue(ctx, task))
		_, err = storage.Dequeue(ctx, uuid.New(), []string{queue.DefaultQueueName})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		outcomes, err := storage.ReclaimStuck(ctx)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.False(t, outcomes[0].Retried)
		assert.Equal(t, queue.StatusFailed, outcomes[0].Task.Status)
	})
}

func TestFileStorage_Stats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	storage, err := filestore.New(path, 1, testLogger())
	require.NoError(t, err)

	require.NoError(t, storage.Enqueue(ctx, newTask("a", 0)))
	require.NoError(t, storage.Enqueue(ctx, newTask("b", 0)))

	stats, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[queue.StatusPending])
}

func TestFileStorage_DLQ(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	storage, err := filestore.New(path, 1, testLogger())
	require.NoError(t, err)

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

func TestFileStorage_WarnsOnConcurrentWorkers(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store.json")

	var buf writeCounter
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	_, err := filestore.New(path, 4, logger)
	require.NoError(t, err)
	assert.Greater(t, buf.n, 0, "expected a warning to be logged for maxConcurrentWorkers > 1")
}

type writeCounter struct{ n int }

func (w *writeCounter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
