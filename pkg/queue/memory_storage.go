package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-process Storage backed by maps and status
// indexes. It is meant for tests and single-process deployments; it does
// not survive restarts and offers no cross-process locking beyond its
// own mutex.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dlq   map[uuid.UUID]*DLQEntry

	byQueue  map[string][]uuid.UUID
	byStatus map[TaskStatus][]uuid.UUID
}

// NewMemoryStorage returns an empty in-memory Storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks:    make(map[uuid.UUID]*Task),
		dlq:      make(map[uuid.UUID]*DLQEntry),
		byQueue:  make(map[string][]uuid.UUID),
		byStatus: make(map[TaskStatus][]uuid.UUID),
	}
}

// Enqueue implements Storage.
func (ms *MemoryStorage) Enqueue(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	stored := task.Clone()
	ms.tasks[task.ID] = stored
	ms.byQueue[task.Queue] = append(ms.byQueue[task.Queue], task.ID)
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)
	return nil
}

// Dequeue implements Storage's atomic claim: highest priority first,
// earliest CreatedAt breaks ties, and task ID breaks any remaining tie.
func (ms *MemoryStorage) Dequeue(ctx context.Context, workerID uuid.UUID, queues []string) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Task

	for _, taskID := range ms.byStatus[StatusPending] {
		task := ms.tasks[taskID]

		if !slices.Contains(queues, task.Queue) {
			continue
		}
		if task.ScheduledAt.After(now) {
			continue
		}

		if best == nil || HigherPriority(task, best) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(best.MaxProcessingTime)
	best.Status = StatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID
	best.UpdatedAt = now

	ms.moveStatus(best.ID, StatusPending, StatusProcessing)
	return best.Clone(), nil
}

// LoadTasks implements Storage.
func (ms *MemoryStorage) LoadTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var ids []uuid.UUID
	switch {
	case filter.Status != nil:
		ids = ms.byStatus[*filter.Status]
	default:
		ids = make([]uuid.UUID, 0, len(ms.tasks))
		for id := range ms.tasks {
			ids = append(ids, id)
		}
	}

	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		task, ok := ms.tasks[id]
		if !ok {
			continue
		}
		if filter.Queue != "" && task.Queue != filter.Queue {
			continue
		}
		out = append(out, task.Clone())
	}
	return out, nil
}

// GetTask implements Storage.
func (ms *MemoryStorage) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// UpdateTask implements Storage, enforcing the status transition graph.
func (ms *MemoryStorage) UpdateTask(ctx context.Context, id uuid.UUID, update TaskUpdate) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	if update.Status != nil {
		if !canTransition(task.Status, *update.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, *update.Status)
		}
		from := task.Status
		task.Status = *update.Status
		ms.moveStatus(id, from, task.Status)

		if task.Status == StatusDone {
			now := time.Now()
			task.ProcessedAt = &now
		}
		if task.Status == StatusPending || task.Status == StatusFailed || task.Status == StatusDone {
			task.LockedBy = nil
			task.LockedUntil = nil
		}
	}
	if update.Log != nil {
		task.Log = *update.Log
	}
	if update.RetryCount != nil {
		task.RetryCount = *update.RetryCount
	}
	task.UpdatedAt = time.Now()

	return task.Clone(), nil
}

// DeleteTask implements Storage.
func (ms *MemoryStorage) DeleteTask(ctx context.Context, id uuid.UUID, hard bool) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	if hard {
		ms.moveStatus(id, task.Status, "")
		ms.byQueue[task.Queue] = slices.DeleteFunc(ms.byQueue[task.Queue], func(t uuid.UUID) bool { return t == id })
		delete(ms.tasks, id)
		return task.Clone(), nil
	}

	if task.Status == StatusDeleted {
		return task.Clone(), nil
	}
	if !canTransition(task.Status, StatusDeleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, StatusDeleted)
	}

	from := task.Status
	task.Status = StatusDeleted
	task.UpdatedAt = time.Now()
	ms.moveStatus(id, from, StatusDeleted)
	return task.Clone(), nil
}

// ReclaimStuck implements Storage: processing tasks whose lock has
// expired are retried (if under MaxRetries) or failed. It returns the
// outcomes rather than running as a background sweep; the engine drives
// this explicitly on the idle poll path.
func (ms *MemoryStorage) ReclaimStuck(ctx context.Context) ([]ReclaimOutcome, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var outcomes []ReclaimOutcome

	for _, taskID := range slices.Clone(ms.byStatus[StatusProcessing]) {
		task := ms.tasks[taskID]
		if task.LockedUntil == nil || !now.After(*task.LockedUntil) {
			continue
		}

		task.LockedUntil = nil
		task.LockedBy = nil
		task.UpdatedAt = now

		nextRetryCount := task.RetryCount + 1
		task.RetryCount = nextRetryCount
		task.Log = fmt.Sprintf("stuck: exceeded max processing time %s", task.MaxProcessingTime)

		retried := nextRetryCount <= task.MaxRetries
		if retried {
			task.Status = StatusPending
			ms.moveStatus(taskID, StatusProcessing, StatusPending)
		} else {
			task.Status = StatusFailed
			ms.moveStatus(taskID, StatusProcessing, StatusFailed)
		}

		outcomes = append(outcomes, ReclaimOutcome{Task: task.Clone(), Retried: retried})
	}

	return outcomes, nil
}

// Stats implements Storage.
func (ms *MemoryStorage) Stats(ctx context.Context) (QueueStats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stats := QueueStats{
		ByStatus: make(map[TaskStatus]int, len(ms.byStatus)),
		ByQueue:  make(map[string]int, len(ms.byQueue)),
	}
	for status, ids := range ms.byStatus {
		stats.ByStatus[status] = len(ids)
		stats.Total += len(ids)
	}
	for queue, ids := range ms.byQueue {
		stats.ByQueue[queue] = len(ids)
	}
	return stats, nil
}

// MoveToDLQ implements DLQStorage.
func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, id uuid.UUID) (*DLQEntry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	entry := &DLQEntry{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		Handler:    task.Handler,
		Payload:    task.Payload,
		Priority:   task.Priority,
		Error:      task.Log,
		RetryCount: task.RetryCount,
		FailedAt:   time.Now(),
		CreatedAt:  time.Now(),
	}
	ms.dlq[entry.ID] = entry

	ms.moveStatus(id, task.Status, "")
	ms.byQueue[task.Queue] = slices.DeleteFunc(ms.byQueue[task.Queue], func(t uuid.UUID) bool { return t == id })
	delete(ms.tasks, id)

	return entry, nil
}

// ListDLQ implements DLQStorage.
func (ms *MemoryStorage) ListDLQ(ctx context.Context) ([]*DLQEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*DLQEntry, 0, len(ms.dlq))
	for _, entry := range ms.dlq {
		clone := *entry
		out = append(out, &clone)
	}
	return out, nil
}

// moveStatus updates the status index in place. to == "" removes the id
// without adding it anywhere (used by hard delete and MoveToDLQ).
func (ms *MemoryStorage) moveStatus(id uuid.UUID, from, to TaskStatus) {
	ms.byStatus[from] = slices.DeleteFunc(ms.byStatus[from], func(t uuid.UUID) bool { return t == id })
	if to != "" {
		ms.byStatus[to] = append(ms.byStatus[to], id)
	}
}
