package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Worker runs a pool of pollers that dequeue and dispatch tasks. Each
// poller is a single goroutine cooperating over the shared Storage; there
// is no leader election beyond what Storage.Dequeue already guarantees
// atomically.
type Worker struct {
	engine *Engine
	queues []string

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// StartWorker launches n poller goroutines against queues (DefaultQueueName
// if none given) and returns immediately. Call StopWorker to drain them.
func (e *Engine) StartWorker(ctx context.Context, n int, queues ...string) error {
	e.workerMu.Lock()
	defer e.workerMu.Unlock()

	if e.worker != nil && e.worker.started {
		return ErrWorkerAlreadyStarted
	}
	if len(queues) == 0 {
		queues = []string{DefaultQueueName}
	}
	if n < 1 {
		n = 1
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w := &Worker{engine: e, queues: queues, cancel: cancel, started: true}
	e.worker = w

	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.pollLoop(workerCtx, uuid.New())
	}
	return nil
}

// StopWorker signals all pollers to finish their current task and exit,
// then waits for them.
func (e *Engine) StopWorker() error {
	e.workerMu.Lock()
	w := e.worker
	e.workerMu.Unlock()

	if w == nil || !w.started {
		return ErrWorkerNotStarted
	}
	w.cancel()
	w.wg.Wait()

	e.workerMu.Lock()
	w.started = false
	e.workerMu.Unlock()
	return nil
}

func (w *Worker) pollLoop(ctx context.Context, workerID uuid.UUID) {
	defer w.wg.Done()
	e := w.engine

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := e.Dequeue(ctx, workerID, w.queues)
		if err != nil {
			e.logger.Error("dequeue failed", slog.String("worker", workerID.String()), slog.String("error", err.Error()))
			if e.config.CrashOnWorkerError {
				panic(fmt.Errorf("queue worker %s: %w", workerID, err))
			}
			sleepOrDone(ctx, e.config.Delay)
			continue
		}
		if task == nil {
			sleepOrDone(ctx, e.config.Delay)
			continue
		}

		w.run(ctx, task)
	}
}

// run invokes the registered handler for task under its resolved
// MaxProcessingTime, isolating handler panics, and records the terminal
// outcome via Engine.UpdateTask.
func (w *Worker) run(ctx context.Context, task *Task) {
	e := w.engine
	e.events.emit(Event{Name: EventTaskStarted, Task: task.Clone()})

	handler, ok := e.registry.Get(task.Handler)
	if !ok {
		w.finishFailed(ctx, task, fmt.Errorf("%w: %q", ErrHandlerNotFound, task.Handler))
		return
	}

	deadline := task.MaxProcessingTime
	if deadline <= 0 {
		deadline = e.config.MaxProcessingTime
	}
	handlerCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		errCh <- handler.Handle(handlerCtx, json.RawMessage(task.Payload))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			w.finishFailed(ctx, task, err)
			return
		}
		w.finishDone(ctx, task)
	case <-handlerCtx.Done():
		// Abandon the task without touching its status or RetryCount: the
		// handler goroutine may still be running and could yet write to
		// errCh, so this worker no longer owns the outcome. The storage
		// lock set at claim time (LockedUntil = claimedAt +
		// MaxProcessingTime) expires on this same deadline; ReclaimStuck
		// is the only path that increments RetryCount for a timeout, so
		// calling UpdateTask here would race it and risk double-counting
		// the same timed-out attempt.
		w.engine.logger.Warn("handler exceeded max processing time, abandoning to stuck-task reclamation",
			slog.String("task", task.ID.String()), slog.Duration("deadline", deadline))
	}
}

func (w *Worker) finishDone(ctx context.Context, task *Task) {
	status := StatusDone
	if _, err := w.engine.UpdateTask(ctx, task.ID, TaskUpdate{Status: &status}); err != nil {
		w.engine.logger.Error("failed to mark task done", slog.String("task", task.ID.String()), slog.String("error", err.Error()))
	}
}

// finishFailed applies the worker's side of the retry cascade: if the
// task has retries remaining, it goes back to pending with RetryCount
// incremented; otherwise it moves to failed. This is the ONLY path that
// increments RetryCount for handler-raised errors — timeout-based retries
// are owned exclusively by Storage.ReclaimStuck, so a task is never
// double-counted.
func (w *Worker) finishFailed(ctx context.Context, task *Task, cause error) {
	logMsg := cause.Error()
	nextRetryCount := task.RetryCount + 1

	var status TaskStatus
	if nextRetryCount <= task.MaxRetries {
		status = StatusPending
	} else {
		status = StatusFailed
	}

	update := TaskUpdate{Status: &status, Log: &logMsg, RetryCount: &nextRetryCount}
	if _, err := w.engine.UpdateTask(ctx, task.ID, update); err != nil {
		w.engine.logger.Error("failed to record task failure", slog.String("task", task.ID.String()), slog.String("error", err.Error()))
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
