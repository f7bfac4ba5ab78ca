// Package sqlstore implements queue.Storage on PostgreSQL via pgx,
// grounded on pkg/pgconn's pooling and the SELECT ... FOR UPDATE SKIP
// LOCKED dequeue pattern.
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

// SQLStorage is a queue.Storage backed by a `tasks` table, safe for
// concurrent worker processes via SKIP LOCKED.
type SQLStorage struct {
	pool  *pgxpool.Pool
	table string
}

// New wraps an already-connected, already-migrated pool.
func New(pool *pgxpool.Pool) *SQLStorage {
	return &SQLStorage{pool: pool, table: "tasks"}
}

// Enqueue implements queue.Storage.
func (s *SQLStorage) Enqueue(ctx context.Context, task *queue.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (
			id, queue, handler, payload, status, priority, max_retries,
			max_processing_time, retry_count, log, scheduled_at,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		task.ID, task.Queue, task.Handler, task.Payload, string(task.Status),
		int64(task.Priority), task.MaxRetries, task.MaxProcessingTime.Nanoseconds(),
		task.RetryCount, task.Log, task.ScheduledAt, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

// Dequeue implements queue.Storage: SELECT ... FOR UPDATE SKIP LOCKED
// picks a candidate without blocking on rows other transactions already
// hold, then a single UPDATE within the same transaction claims it.
func (s *SQLStorage) Dequeue(ctx context.Context, workerID uuid.UUID, queues []string) (*queue.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, queue, handler, payload, status, priority, max_retries,
		       max_processing_time, retry_count, log, scheduled_at,
		       locked_until, locked_by, processed_at, created_at, updated_at
		FROM tasks
		WHERE status = 'pending'
		  AND queue = ANY($1)
		  AND scheduled_at <= now()
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		queues,
	)

	task, err := scanTask(row)
	if err != nil {
		if isNoRows(err) {
			return nil, queue.ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("select candidate task: %w", err)
	}

	lockUntil := time.Now().Add(task.MaxProcessingTime)
	_, err = tx.Exec(ctx, `
		UPDATE tasks SET status = 'processing', locked_until = $1, locked_by = $2, updated_at = now()
		WHERE id = $3`,
		lockUntil, workerID, task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("claim task %s: %w", task.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit dequeue tx: %w", err)
	}

	task.Status = queue.StatusProcessing
	task.LockedUntil = &lockUntil
	task.LockedBy = &workerID
	return task, nil
}

// LoadTasks implements queue.Storage.
func (s *SQLStorage) LoadTasks(ctx context.Context, filter queue.TaskFilter) ([]*queue.Task, error) {
	query := `
		SELECT id, queue, handler, payload, status, priority, max_retries,
		       max_processing_time, retry_count, log, scheduled_at,
		       locked_until, locked_by, processed_at, created_at, updated_at
		FROM tasks WHERE 1=1`
	args := []any{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Queue != "" {
		args = append(args, filter.Queue)
		query += fmt.Sprintf(" AND queue = $%d", len(args))
	}
	query += " ORDER BY priority DESC, created_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*queue.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// GetTask implements queue.Storage.
func (s *SQLStorage) GetTask(ctx context.Context, id uuid.UUID) (*queue.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, queue, handler, payload, status, priority, max_retries,
		       max_processing_time, retry_count, log, scheduled_at,
		       locked_until, locked_by, processed_at, created_at, updated_at
		FROM tasks WHERE id = $1`, id)

	task, err := scanTask(row)
	if err != nil {
		if isNoRows(err) {
			return nil, queue.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// UpdateTask implements queue.Storage.
func (s *SQLStorage) UpdateTask(ctx context.Context, id uuid.UUID, update queue.TaskUpdate) (*queue.Task, error) {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	newStatus := current.Status
	if update.Status != nil {
		if !queue.CanTransition(current.Status, *update.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, current.Status, *update.Status)
		}
		newStatus = *update.Status
	}

	log := current.Log
	if update.Log != nil {
		log = *update.Log
	}
	retryCount := current.RetryCount
	if update.RetryCount != nil {
		retryCount = *update.RetryCount
	}

	clearLock := newStatus == queue.StatusPending || newStatus == queue.StatusFailed || newStatus == queue.StatusDone
	setProcessed := newStatus == queue.StatusDone

	_, err = s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = $1,
			log = $2,
			retry_count = $3,
			updated_at = now(),
			locked_until = CASE WHEN $4 THEN NULL ELSE locked_until END,
			locked_by    = CASE WHEN $4 THEN NULL ELSE locked_by END,
			processed_at = CASE WHEN $5 THEN now() ELSE processed_at END
		WHERE id = $6`,
		string(newStatus), log, retryCount, clearLock, setProcessed, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}

	return s.GetTask(ctx, id)
}

// DeleteTask implements queue.Storage.
func (s *SQLStorage) DeleteTask(ctx context.Context, id uuid.UUID, hard bool) (*queue.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if hard {
		if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("hard delete task %s: %w", id, err)
		}
		return task, nil
	}

	if task.Status == queue.StatusDeleted {
		return task, nil
	}
	if !queue.CanTransition(task.Status, queue.StatusDeleted) {
		return nil, fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, task.Status, queue.StatusDeleted)
	}

	if _, err := s.pool.Exec(ctx, `UPDATE tasks SET status = 'deleted', updated_at = now() WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("soft delete task %s: %w", id, err)
	}
	return s.GetTask(ctx, id)
}

// ReclaimStuck implements queue.Storage.
func (s *SQLStorage) ReclaimStuck(ctx context.Context) ([]queue.ReclaimOutcome, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, queue, handler, payload, status, priority, max_retries,
		       max_processing_time, retry_count, log, scheduled_at,
		       locked_until, locked_by, processed_at, created_at, updated_at
		FROM tasks
		WHERE status = 'processing' AND locked_until < now()
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return nil, fmt.Errorf("scan stuck tasks: %w", err)
	}

	var stuck []*queue.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stuck task row: %w", err)
		}
		stuck = append(stuck, task)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var outcomes []queue.ReclaimOutcome
	for _, task := range stuck {
		nextRetryCount := task.RetryCount + 1
		logMsg := fmt.Sprintf("stuck: exceeded max processing time %s", task.MaxProcessingTime)
		retried := nextRetryCount <= task.MaxRetries
		newStatus := queue.StatusFailed
		if retried {
			newStatus = queue.StatusPending
		}

		_, err := s.pool.Exec(ctx, `
			UPDATE tasks SET status = $1, log = $2, retry_count = $3,
				locked_until = NULL, locked_by = NULL, updated_at = now()
			WHERE id = $4`,
			string(newStatus), logMsg, nextRetryCount, task.ID,
		)
		if err != nil {
			continue
		}

		task.Status = newStatus
		task.Log = logMsg
		task.RetryCount = nextRetryCount
		task.LockedUntil = nil
		task.LockedBy = nil
		outcomes = append(outcomes, queue.ReclaimOutcome{Task: task.Clone(), Retried: retried})
	}
	return outcomes, nil
}

// Stats implements queue.Storage.
func (s *SQLStorage) Stats(ctx context.Context) (queue.QueueStats, error) {
	stats := queue.QueueStats{ByStatus: make(map[queue.TaskStatus]int), ByQueue: make(map[string]int)}

	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return stats, err
		}
		stats.ByStatus[queue.TaskStatus(status)] = n
		stats.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	rows, err = s.pool.Query(ctx, `SELECT queue, count(*) FROM tasks GROUP BY queue`)
	if err != nil {
		return stats, fmt.Errorf("count by queue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var q string
		var n int
		if err := rows.Scan(&q, &n); err != nil {
			return stats, err
		}
		stats.ByQueue[q] = n
	}
	return stats, rows.Err()
}

// MoveToDLQ implements queue.DLQStorage.
func (s *SQLStorage) MoveToDLQ(ctx context.Context, id uuid.UUID) (*queue.DLQEntry, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin dlq tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO tasks_dlq (id, task_id, queue, handler, payload, priority, error, retry_count, failed_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		entry.ID, entry.TaskID, entry.Queue, entry.Handler, entry.Payload,
		int64(entry.Priority), entry.Error, entry.RetryCount, entry.FailedAt, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert dlq entry: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete task %s after dlq move: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit dlq tx: %w", err)
	}
	return entry, nil
}

// ListDLQ implements queue.DLQStorage.
func (s *SQLStorage) ListDLQ(ctx context.Context) ([]*queue.DLQEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, queue, handler, payload, priority, error, retry_count, failed_at, created_at
		FROM tasks_dlq ORDER BY failed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query dlq: %w", err)
	}
	defer rows.Close()

	var out []*queue.DLQEntry
	for rows.Next() {
		var e queue.DLQEntry
		var priority int64
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Queue, &e.Handler, &e.Payload, &priority, &e.Error, &e.RetryCount, &e.FailedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dlq row: %w", err)
		}
		e.Priority = queue.Priority(priority)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// rowScanner abstracts pgx.Row / pgx.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*queue.Task, error) {
	var (
		t                 queue.Task
		status            string
		priority          int64
		maxProcessingTime int64
		payload           json.RawMessage
	)
	err := row.Scan(
		&t.ID, &t.Queue, &t.Handler, &payload, &status, &priority, &t.MaxRetries,
		&maxProcessingTime, &t.RetryCount, &t.Log, &t.ScheduledAt,
		&t.LockedUntil, &t.LockedBy, &t.ProcessedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = queue.TaskStatus(status)
	t.Priority = queue.Priority(priority)
	t.MaxProcessingTime = time.Duration(maxProcessingTime)
	t.Payload = payload
	return &t, nil
}

func isNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
