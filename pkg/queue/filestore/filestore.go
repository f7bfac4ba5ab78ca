// Package filestore implements queue.Storage on top of a single JSON file,
// for single-process deployments that want durability across restarts
// without standing up Redis or a database.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

type fileDoc struct {
	Tasks []*queue.Task     `json:"tasks"`
	DLQ   []*queue.DLQEntry `json:"dlq,omitempty"`
}

// FileStorage is a queue.Storage backed by a single JSON document,
// serialized to disk with write-temp-then-rename to avoid torn writes.
// It offers no cross-process locking: running more than one worker
// process against the same file will race on the underlying file, so
// New logs a warning when maxConcurrentWorkers is greater than one.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// New opens (or creates) path as a FileStorage. path must end in .json.
// maxConcurrentWorkers is advisory: it is only used to warn callers that
// this backend cannot coordinate more than one worker process safely.
func New(path string, maxConcurrentWorkers int, logger *slog.Logger) (*FileStorage, error) {
	if filepath.Ext(path) != ".json" {
		return nil, queue.ErrInvalidFileExtension
	}
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileStorage{path: path, logger: logger}

	if maxConcurrentWorkers > 1 {
		logger.Warn("file backend does not coordinate across processes; concurrent workers may double-claim tasks",
			slog.Int("max_concurrent_workers", maxConcurrentWorkers))
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := fs.save(&fileDoc{Tasks: []*queue.Task{}}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	} else if _, err := fs.load(); err != nil {
		return nil, err
	}

	return fs, nil
}

func (fs *FileStorage) load() (*fileDoc, error) {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fs.path, err)
	}
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", queue.ErrCorruptFile, err)
	}
	return &doc, nil
}

// save writes doc to a temp file in the same directory, then renames it
// over the target path, so a crash mid-write never leaves a truncated
// store file behind.
func (fs *FileStorage) save(doc *fileDoc) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".filestore-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}

// Enqueue implements queue.Storage.
func (fs *FileStorage) Enqueue(ctx context.Context, task *queue.Task) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return err
	}
	for _, t := range doc.Tasks {
		if t.ID == task.ID {
			return fmt.Errorf("task %s already exists", task.ID)
		}
	}
	doc.Tasks = append(doc.Tasks, task.Clone())
	return fs.save(doc)
}

// Dequeue implements queue.Storage.
func (fs *FileStorage) Dequeue(ctx context.Context, workerID uuid.UUID, queues []string) (*queue.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var best *queue.Task
	for _, t := range doc.Tasks {
		if t.Status != queue.StatusPending {
			continue
		}
		if !slices.Contains(queues, t.Queue) {
			continue
		}
		if t.ScheduledAt.After(now) {
			continue
		}
		if best == nil || queue.HigherPriority(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, queue.ErrNoTaskToClaim
	}

	lockUntil := now.Add(best.MaxProcessingTime)
	best.Status = queue.StatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID
	best.UpdatedAt = now

	if err := fs.save(doc); err != nil {
		return nil, err
	}
	return best.Clone(), nil
}

// LoadTasks implements queue.Storage.
func (fs *FileStorage) LoadTasks(ctx context.Context, filter queue.TaskFilter) ([]*queue.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}

	out := make([]*queue.Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Queue != "" && t.Queue != filter.Queue {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

// GetTask implements queue.Storage.
func (fs *FileStorage) GetTask(ctx context.Context, id uuid.UUID) (*queue.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}
	for _, t := range doc.Tasks {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, queue.ErrTaskNotFound
}

// UpdateTask implements queue.Storage.
func (fs *FileStorage) UpdateTask(ctx context.Context, id uuid.UUID, update queue.TaskUpdate) (*queue.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(doc.Tasks, func(t *queue.Task) bool { return t.ID == id })
	if idx < 0 {
		return nil, queue.ErrTaskNotFound
	}
	task := doc.Tasks[idx]

	if update.Status != nil {
		if !queue.CanTransition(task.Status, *update.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, task.Status, *update.Status)
		}
		task.Status = *update.Status
		if task.Status == queue.StatusDone {
			now := time.Now()
			task.ProcessedAt = &now
		}
		if task.Status == queue.StatusPending || task.Status == queue.StatusFailed || task.Status == queue.StatusDone {
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

	if err := fs.save(doc); err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

// DeleteTask implements queue.Storage.
func (fs *FileStorage) DeleteTask(ctx context.Context, id uuid.UUID, hard bool) (*queue.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(doc.Tasks, func(t *queue.Task) bool { return t.ID == id })
	if idx < 0 {
		return nil, queue.ErrTaskNotFound
	}
	task := doc.Tasks[idx]

	if hard {
		removed := task.Clone()
		doc.Tasks = slices.Delete(doc.Tasks, idx, idx+1)
		if err := fs.save(doc); err != nil {
			return nil, err
		}
		return removed, nil
	}

	if task.Status == queue.StatusDeleted {
		return task.Clone(), nil
	}
	if !queue.CanTransition(task.Status, queue.StatusDeleted) {
		return nil, fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, task.Status, queue.StatusDeleted)
	}
	task.Status = queue.StatusDeleted
	task.UpdatedAt = time.Now()

	if err := fs.save(doc); err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

// ReclaimStuck implements queue.Storage.
func (fs *FileStorage) ReclaimStuck(ctx context.Context) ([]queue.ReclaimOutcome, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var outcomes []queue.ReclaimOutcome
	for _, t := range doc.Tasks {
		if t.Status != queue.StatusProcessing {
			continue
		}
		if t.LockedUntil == nil || !now.After(*t.LockedUntil) {
			continue
		}

		t.LockedUntil = nil
		t.LockedBy = nil
		t.UpdatedAt = now
		t.RetryCount++
		t.Log = fmt.Sprintf("stuck: exceeded max processing time %s", t.MaxProcessingTime)

		retried := t.RetryCount <= t.MaxRetries
		if retried {
			t.Status = queue.StatusPending
		} else {
			t.Status = queue.StatusFailed
		}
		outcomes = append(outcomes, queue.ReclaimOutcome{Task: t.Clone(), Retried: retried})
	}

	if len(outcomes) > 0 {
		if err := fs.save(doc); err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}

// Stats implements queue.Storage.
func (fs *FileStorage) Stats(ctx context.Context) (queue.QueueStats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return queue.QueueStats{}, err
	}

	stats := queue.QueueStats{
		ByStatus: make(map[queue.TaskStatus]int),
		ByQueue:  make(map[string]int),
	}
	for _, t := range doc.Tasks {
		stats.ByStatus[t.Status]++
		stats.ByQueue[t.Queue]++
		stats.Total++
	}
	return stats, nil
}

// MoveToDLQ implements queue.DLQStorage.
func (fs *FileStorage) MoveToDLQ(ctx context.Context, id uuid.UUID) (*queue.DLQEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(doc.Tasks, func(t *queue.Task) bool { return t.ID == id })
	if idx < 0 {
		return nil, queue.ErrTaskNotFound
	}
	task := doc.Tasks[idx]

	entry := &queue.DLQEntry{
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
	doc.DLQ = append(doc.DLQ, entry)
	doc.Tasks = slices.Delete(doc.Tasks, idx, idx+1)

	if err := fs.save(doc); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListDLQ implements queue.DLQStorage.
func (fs *FileStorage) ListDLQ(ctx context.Context) ([]*queue.DLQEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, err := fs.load()
	if err != nil {
		return nil, err
	}
	out := make([]*queue.DLQEntry, len(doc.DLQ))
	copy(out, doc.DLQ)
	return out, nil
}
