package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the queue name used when a task doesn't specify one.
const DefaultQueueName = "default"

// HardMaxRetries is the system-wide upper bound on a task's MaxRetries,
// regardless of engine, handler, or per-task overrides.
const HardMaxRetries = 10

// TaskStatus is the lifecycle status of a Task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusDone       TaskStatus = "done"
	StatusFailed     TaskStatus = "failed"
	StatusDeleted    TaskStatus = "deleted"
)

// Priority is a signed integer priority class; higher wins. There is no
// fixed ceiling, so callers are free to define their own priority bands.
type Priority int

// Task is the unit of work managed by Engine and Storage.
//
// The engine never mutates ID, Handler, Payload, CreatedAt, MaxRetries,
// MaxProcessingTime, or Priority after creation.
type Task struct {
	ID                uuid.UUID     `json:"id"`
	Queue             string        `json:"queue"`
	Handler           string        `json:"handler"`
	Payload           []byte        `json:"payload,omitempty"`
	Status            TaskStatus    `json:"status"`
	Priority          Priority      `json:"priority"`
	MaxRetries        int           `json:"max_retries"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	RetryCount        int           `json:"retry_count"`
	Log               string        `json:"log,omitempty"`
	ScheduledAt       time.Time     `json:"scheduled_at"`
	LockedUntil       *time.Time    `json:"locked_until,omitempty"`
	LockedBy          *uuid.UUID    `json:"locked_by,omitempty"`
	ProcessedAt       *time.Time    `json:"processed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Clone returns a deep-enough copy safe for handing to callers without
// letting them mutate storage-internal state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.LockedUntil != nil {
		lu := *t.LockedUntil
		c.LockedUntil = &lu
	}
	if t.LockedBy != nil {
		lb := *t.LockedBy
		c.LockedBy = &lb
	}
	if t.ProcessedAt != nil {
		pa := *t.ProcessedAt
		c.ProcessedAt = &pa
	}
	if t.Payload != nil {
		c.Payload = append([]byte(nil), t.Payload...)
	}
	return &c
}

// DLQEntry stores a task that exhausted all retries, retained for manual
// inspection and recovery.
type DLQEntry struct {
	ID         uuid.UUID  `json:"id"`
	TaskID     uuid.UUID  `json:"task_id"`
	Queue      string     `json:"queue"`
	Handler    string     `json:"handler"`
	Payload    []byte     `json:"payload,omitempty"`
	Priority   Priority   `json:"priority"`
	Error      string     `json:"error"`
	RetryCount int        `json:"retry_count"`
	FailedAt   time.Time  `json:"failed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// QueueStats summarises the queue's contents for admin inspection.
type QueueStats struct {
	ByStatus map[TaskStatus]int `json:"by_status"`
	ByQueue  map[string]int     `json:"by_queue"`
	Total    int                `json:"total"`
}

// TaskUpdate is a partial update applied to a Task's mutable fields.
// A nil field is left untouched.
type TaskUpdate struct {
	Status     *TaskStatus
	Log        *string
	RetryCount *int
}
