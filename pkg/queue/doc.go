// Package queue provides a durable, handler-dispatched background task
// queue: producers enqueue typed jobs identified by a handler name plus an
// arbitrary payload, and one or more workers drain the queue, invoke the
// registered handler, and drive each job through a persistent status
// lifecycle with retries, per-job timeouts, and priority ordering.
//
// The package is organised around four cooperating pieces:
//
//   - Registry  — process-local mapping from handler name to callable
//   - Engine    — the state machine governing a job from enqueue to
//     terminal status, backed by a pluggable Storage
//   - Worker    — a pool of cooperative pollers that drain the engine and
//     dispatch to registered handlers
//   - Storage   — the persistence contract; MemoryStorage lives in this
//     package, with the filestore, redisstore, and sqlstore subpackages
//     providing durable alternatives
//
// # Architecture
//
//  1. Storage encapsulates all persistence and atomic-dequeue concerns.
//  2. Engine and Worker are independent and can be deployed in separate
//     processes sharing one durable Storage.
//  3. A Task is immutable in its identifying fields once persisted; retry
//     attempts are tracked via RetryCount and MaxRetries.
//  4. Priority and creation time together give a total dequeue ordering.
//
// # Usage
//
//	store := queue.NewMemoryStorage()
//	engine, _ := queue.NewEngine(store)
//	handler := queue.NewTaskHandler(func(ctx context.Context, p SendEmailPayload) error {
//	    return sendEmail(p)
//	})
//	engine.Register(handler)
//	_, _ = engine.AddTask(ctx, handler.Name(), SendEmailPayload{UserID: 42})
//	engine.StartWorker(ctx, 4)
//	defer engine.StopWorker()
//
// # Error handling
//
// Package-level sentinel errors (ErrHandlerNotRegistered, ErrInvalidPriority,
// ...) signal violations of business invariants and can be checked with
// errors.Is.
package queue
