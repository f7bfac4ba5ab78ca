package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine orchestrates enqueue, priority-ordered dequeue, retry accounting,
// stuck-job reclamation, and event emission over a pluggable Storage. It
// is the queue's core state machine.
type Engine struct {
	storage  Storage
	registry *Registry
	events   *EventEmitter
	worker   *Worker
	config   Config
	logger   *slog.Logger

	workerMu sync.Mutex
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithEngineConfig applies the environment-configurable settings from cfg.
func WithEngineConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.config = cfg }
}

// WithEngineLogger sets the *slog.Logger used by the engine and its
// worker pool. Defaults to slog.Default().
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegistry injects a pre-built Registry instead of an empty one —
// useful when handlers are registered before the engine exists.
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// NewEngine builds an Engine over storage. Storage must not be nil.
func NewEngine(storage Storage, opts ...EngineOption) (*Engine, error) {
	if storage == nil {
		return nil, ErrRepositoryNil
	}

	e := &Engine{
		storage:  storage,
		registry: NewRegistry(),
		events:   NewEventEmitter(),
		config:   defaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.events.onPanic = func(name EventName, r any) {
		e.logger.Error(recoveredListenerError(name, r).Error())
	}
	return e, nil
}

// Register binds handler to its name in the engine's local Registry.
func (e *Engine) Register(handler Handler, opts ...HandlerOption) error {
	return e.registry.Register(handler, opts...)
}

// On subscribes listener to name's lifecycle events.
func (e *Engine) On(name EventName, listener Listener) {
	e.events.On(name, listener)
}

// AddTask creates a task with resolved policy, persists it, and emits
// EventTaskAdded.
func (e *Engine) AddTask(ctx context.Context, handlerName string, payload any, opts ...AddTaskOption) (*Task, error) {
	options := &addTaskOptions{
		queue:    DefaultQueueName,
		priority: 0,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.requireRegisteredHandler && !e.registry.Has(handlerName) {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotRegistered, handlerName)
	}

	if payload == nil {
		return nil, ErrPayloadNil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMarshal, err)
	}

	if result := e.registry.Validate(handlerName, payloadBytes); !result.Valid {
		if !options.skipOnPayloadError {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, result.Message)
		}
		e.logger.Warn("enqueueing task with invalid payload",
			slog.String("handler", handlerName),
			slog.String("reason", result.Message))
	}

	handlerMaxRetries, handlerMaxProcessingTime := e.registry.policy(handlerName)
	policy := resolve(options.maxRetries, options.maxProcessingTime, handlerMaxRetries, handlerMaxProcessingTime, e.config)
	if policy.maxRetries > HardMaxRetries {
		return nil, fmt.Errorf("%w: %d > %d", ErrMaxRetriesLimitError, policy.maxRetries, HardMaxRetries)
	}

	now := time.Now()
	scheduledAt := now
	switch {
	case options.scheduledAt != nil:
		scheduledAt = *options.scheduledAt
	case options.delay > 0:
		scheduledAt = now.Add(options.delay)
	}

	task := &Task{
		ID:                uuid.New(),
		Queue:             options.queue,
		Handler:           handlerName,
		Payload:           payloadBytes,
		Status:            StatusPending,
		Priority:          options.priority,
		MaxRetries:        policy.maxRetries,
		MaxProcessingTime: policy.maxProcessingTime,
		RetryCount:        0,
		ScheduledAt:       scheduledAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.storage.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue task %q: %w", handlerName, err)
	}

	e.events.emit(Event{Name: EventTaskAdded, Task: task.Clone()})
	return task, nil
}

// Dequeue returns the next runnable task, atomically flipping it to
// processing, or (nil, nil) if none is runnable. It never blocks.
func (e *Engine) Dequeue(ctx context.Context, workerID uuid.UUID, queues []string) (*Task, error) {
	task, err := e.storage.Dequeue(ctx, workerID, queues)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			e.ReclaimStuck(ctx)
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	return task, nil
}

// ReclaimStuck scans for processing tasks whose owner appears dead and
// applies the retry/fail branching, emitting EventTaskStuck plus
// EventTaskRetried or EventTaskFailed for each.
func (e *Engine) ReclaimStuck(ctx context.Context) {
	outcomes, err := e.storage.ReclaimStuck(ctx)
	if err != nil {
		e.logger.Error("stuck task reclamation failed", slog.String("error", err.Error()))
		return
	}
	for _, o := range outcomes {
		e.events.emit(Event{Name: EventTaskStuck, Task: o.Task.Clone()})
		if o.Retried {
			e.events.emit(Event{Name: EventTaskRetried, Task: o.Task.Clone()})
		} else {
			e.events.emit(Event{Name: EventTaskFailed, Task: o.Task.Clone(), Err: errors.New(o.Task.Log)})
		}
	}
}

// GetTaskById returns a task by id, or ErrTaskNotFound.
func (e *Engine) GetTaskById(ctx context.Context, id uuid.UUID) (*Task, error) {
	return e.storage.GetTask(ctx, id)
}

// GetAllTasks returns a snapshot of tasks, optionally filtered by status.
func (e *Engine) GetAllTasks(ctx context.Context, statusFilter *TaskStatus) ([]*Task, error) {
	return e.storage.LoadTasks(ctx, TaskFilter{Status: statusFilter})
}

// UpdateTask applies a partial update, used by workers to record outcomes
// and by admin callers for manual recovery. The status transition graph
// is enforced by the storage adapter.
func (e *Engine) UpdateTask(ctx context.Context, id uuid.UUID, update TaskUpdate) (*Task, error) {
	before, err := e.storage.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	task, err := e.storage.UpdateTask(ctx, id, update)
	if err != nil {
		return nil, err
	}

	if update.Status != nil && before.Status != task.Status {
		switch task.Status {
		case StatusDone:
			e.events.emit(Event{Name: EventTaskCompleted, Task: task.Clone()})
		case StatusFailed:
			var failErr error
			if task.Log != "" {
				failErr = errors.New(task.Log)
			}
			e.events.emit(Event{Name: EventTaskFailed, Task: task.Clone(), Err: failErr})
		case StatusPending:
			if before.Status == StatusProcessing {
				e.events.emit(Event{Name: EventTaskRetried, Task: task.Clone()})
			}
		}
	}

	return task, nil
}

// DeleteTask soft-deletes (default) or hard-deletes a task. Soft-deleting
// an already-deleted task is idempotent and emits no extra event.
func (e *Engine) DeleteTask(ctx context.Context, id uuid.UUID, hard bool) (*Task, error) {
	before, err := e.storage.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	alreadyDeleted := before.Status == StatusDeleted

	task, err := e.storage.DeleteTask(ctx, id, hard)
	if err != nil {
		return nil, err
	}

	if !alreadyDeleted {
		e.events.emit(Event{Name: EventTaskRemoved, Task: task.Clone()})
	}
	return task, nil
}

// Stats summarises the queue for admin inspection.
func (e *Engine) Stats(ctx context.Context) (QueueStats, error) {
	return e.storage.Stats(ctx)
}

// MoveToDLQ moves a task to the dead letter queue, if the underlying
// Storage supports it (see DLQStorage).
func (e *Engine) MoveToDLQ(ctx context.Context, id uuid.UUID) (*DLQEntry, error) {
	dlq, ok := e.storage.(DLQStorage)
	if !ok {
		return nil, fmt.Errorf("storage does not implement DLQStorage")
	}
	return dlq.MoveToDLQ(ctx, id)
}

// ListDLQ lists dead-lettered tasks, if the underlying Storage supports
// it.
func (e *Engine) ListDLQ(ctx context.Context) ([]*DLQEntry, error) {
	dlq, ok := e.storage.(DLQStorage)
	if !ok {
		return nil, fmt.Errorf("storage does not implement DLQStorage")
	}
	return dlq.ListDLQ(ctx)
}
