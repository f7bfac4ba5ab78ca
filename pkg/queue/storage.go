package queue

import (
	"context"

	"github.com/google/uuid"
)

// TaskFilter narrows LoadTasks/GetAllTasks results.
type TaskFilter struct {
	// Status, when non-nil, restricts results to a single status.
	Status *TaskStatus
	// Queue, when non-empty, restricts results to a single queue.
	Queue string
}

// ReclaimOutcome describes what happened to one task during a stuck scan,
// so the engine can emit the matching events without re-deriving the
// decision storage already made.
type ReclaimOutcome struct {
	Task      *Task
	Retried   bool // true: reset to pending; false: moved to failed
}

// Storage is the persistence contract every backend adapter implements.
// The engine treats this as the only boundary to the storage layer; it
// never assumes anything about the backend beyond this interface.
type Storage interface {
	// Enqueue durably adds task. No ordering guarantee beyond what
	// priority and CreatedAt encode.
	Enqueue(ctx context.Context, task *Task) error

	// Dequeue atomically selects the highest-priority runnable pending
	// task among queues, transitions it to processing, sets UpdatedAt to
	// now and LockedBy/LockedUntil accordingly, and returns it. It
	// returns ErrNoTaskToClaim if none is available. Each pending task
	// must be returned to exactly one caller, even under concurrent
	// invocations across workers, processes, or machines.
	Dequeue(ctx context.Context, workerID uuid.UUID, queues []string) (*Task, error)

	// LoadTasks returns a snapshot of tasks matching filter. May be
	// eventually consistent depending on the adapter.
	LoadTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)

	// GetTask returns a single task by id, or ErrTaskNotFound.
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)

	// UpdateTask applies a partial update to a task's mutable fields
	// (Status, Log, RetryCount), enforcing the status transition graph.
	// Compare-and-set is not required; last-writer-wins is acceptable.
	UpdateTask(ctx context.Context, id uuid.UUID, update TaskUpdate) (*Task, error)

	// DeleteTask soft-deletes (status -> deleted) by default, or removes
	// the row entirely when hard is true. Soft-deleting an
	// already-deleted task is a no-op that still returns the row.
	DeleteTask(ctx context.Context, id uuid.UUID, hard bool) (*Task, error)

	// ReclaimStuck scans processing tasks whose most recent UpdatedAt is
	// older than their own MaxProcessingTime and applies the retry/fail
	// branching, returning what happened to each so the engine can emit
	// matching events.
	ReclaimStuck(ctx context.Context) ([]ReclaimOutcome, error)

	// Stats summarises the queue's contents for admin inspection.
	Stats(ctx context.Context) (QueueStats, error)
}

// DLQStorage is an optional capability: adapters that retain a dead
// letter queue of exhausted tasks implement it. The engine feature-detects
// it via a type assertion rather than requiring every adapter to carry
// DLQ bookkeeping.
type DLQStorage interface {
	MoveToDLQ(ctx context.Context, id uuid.UUID) (*DLQEntry, error)
	ListDLQ(ctx context.Context) ([]*DLQEntry, error)
}
