package queue

import "time"

// AddTaskOption configures a single AddTask call.
type AddTaskOption func(*addTaskOptions)

type addTaskOptions struct {
	queue                   string
	priority                Priority
	maxRetries              *int
	maxProcessingTime       *time.Duration
	delay                   time.Duration
	scheduledAt             *time.Time
	skipOnPayloadError      bool
	requireRegisteredHandler bool
}

// WithQueue routes the task to a named queue instead of DefaultQueueName.
func WithQueue(queue string) AddTaskOption {
	return func(o *addTaskOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithPriority sets the task's priority class; higher wins.
func WithPriority(priority Priority) AddTaskOption {
	return func(o *addTaskOptions) { o.priority = priority }
}

// WithTaskMaxRetries overrides the resolved MaxRetries for this task only.
// Values above HardMaxRetries are rejected by AddTask with
// ErrMaxRetriesLimitError.
func WithTaskMaxRetries(n int) AddTaskOption {
	return func(o *addTaskOptions) { o.maxRetries = &n }
}

// WithTaskMaxProcessingTime overrides the resolved MaxProcessingTime for
// this task only.
func WithTaskMaxProcessingTime(d time.Duration) AddTaskOption {
	return func(o *addTaskOptions) {
		if d > 0 {
			o.maxProcessingTime = &d
		}
	}
}

// WithDelay schedules the task to become runnable after d has elapsed.
func WithDelay(d time.Duration) AddTaskOption {
	return func(o *addTaskOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledAt schedules the task to become runnable at a specific
// time, overriding WithDelay if both are given.
func WithScheduledAt(t time.Time) AddTaskOption {
	return func(o *addTaskOptions) { o.scheduledAt = &t }
}

// WithSkipOnPayloadError downgrades a validator rejection from an error
// into a logged warning, enqueuing the task anyway.
func WithSkipOnPayloadError() AddTaskOption {
	return func(o *addTaskOptions) { o.skipOnPayloadError = true }
}

// WithRequireRegisteredHandler makes AddTask fail with
// ErrHandlerNotRegistered if this producer process has no handler
// registered under the given name. By default AddTask allows enqueueing
// for handlers that only a separate worker process will register.
func WithRequireRegisteredHandler() AddTaskOption {
	return func(o *addTaskOptions) { o.requireRegisteredHandler = true }
}
