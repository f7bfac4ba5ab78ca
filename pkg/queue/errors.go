package queue

import "errors"

// Configuration errors — fatal at construction time.
var (
	// ErrRepositoryNil is returned when a nil Storage is provided to NewEngine.
	ErrRepositoryNil = errors.New("storage cannot be nil")

	// ErrUnknownBackend names an unrecognised storage backend kind. Nothing
	// in this package returns it: NewEngine takes a Storage value directly.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrMaxRetriesLimitError is returned when a configured MaxRetries
	// exceeds HardMaxRetries.
	ErrMaxRetriesLimitError = errors.New("max retries exceeds hard system limit")

	// ErrInvalidFileExtension is returned when the file backend is given a
	// path that doesn't end in .json.
	ErrInvalidFileExtension = errors.New("file backend requires a .json path")

	// ErrCorruptFile is returned when the file backend's JSON store cannot
	// be parsed on load.
	ErrCorruptFile = errors.New("file backend: store file is not valid JSON")
)

// Input errors — surfaced to the caller of AddTask/Register.
var (
	// ErrHandlerNotRegistered is returned by AddTask when strict
	// validation is requested and the named handler isn't registered.
	ErrHandlerNotRegistered = errors.New("handler not registered")

	// ErrInvalidPayload is returned when a handler's validator rejects a
	// payload.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrPayloadMarshal is returned when payload marshalling fails.
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrInvalidPriority is returned when a priority override is rejected
	// by the resolved policy (reserved for future bounded-priority modes;
	// unbounded by default, see Priority).
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrNoHandlers reports that no handlers are registered. StartWorker
	// does not return it; it starts pollers even with an empty registry.
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrTaskAlreadyRegistered is returned when a handler name collides
	// under strict registration (see RegisterStrict).
	ErrTaskAlreadyRegistered = errors.New("handler already registered")

	// ErrInvalidTransition is returned by UpdateTask/DeleteTask when the
	// requested status transition is not allowed from the task's current
	// status.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Runtime / backend errors.
var (
	// ErrNoTaskToClaim is returned by Storage.Dequeue when no runnable
	// task exists. It is not a failure; callers should treat it the same
	// as a nil task.
	ErrNoTaskToClaim = errors.New("no task available to claim")

	// ErrTaskNotFound is returned when an operation references a task ID
	// that doesn't exist in storage.
	ErrTaskNotFound = errors.New("task not found")

	// ErrHandlerNotFound is the error recorded against a task whose handler
	// name has no registered entry at dispatch time. The worker handles it
	// like a handler error: the task goes back to pending while it has
	// retries left and to failed after that.
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrWorkerAlreadyStarted is returned by StartWorker if called twice
	// without an intervening StopWorker.
	ErrWorkerAlreadyStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned by StopWorker if the worker was
	// never started.
	ErrWorkerNotStarted = errors.New("worker not started")
)
