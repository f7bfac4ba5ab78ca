package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

// RedisStorage is a queue.Storage backed by Redis, safe for concurrent
// worker processes: Dequeue is a single server-side script invocation.
type RedisStorage struct {
	client redis.UniversalClient
	keys   keyBuilder
}

// New wraps an already-connected client (see pkg/redisconn.Connect).
// prefix namespaces all keys this storage touches; it defaults to
// "queue-manager" if empty, per the documented persistent format.
func New(client redis.UniversalClient, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "queue-manager"
	}
	return &RedisStorage{client: client, keys: keyBuilder{prefix: prefix}}
}

// Enqueue implements queue.Storage.
func (rs *RedisStorage) Enqueue(ctx context.Context, task *queue.Task) error {
	w := toWire(task)
	body, err := marshalWire(w)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.keys.task(w.ID), body, 0)
		pipe.ZAdd(ctx, rs.keys.status(task.Status), redis.Z{
			Score:  score(task.Priority, w.CreatedAtMillis),
			Member: w.ID,
		})
		pipe.SAdd(ctx, rs.keys.allTasks(), w.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return nil
}

// Dequeue implements queue.Storage via the atomic Lua script.
func (rs *RedisStorage) Dequeue(ctx context.Context, workerID uuid.UUID, queues []string) (*queue.Task, error) {
	args := make([]any, 0, 3+len(queues))
	args = append(args, rs.keys.prefix, time.Now().UnixMilli(), workerID.String())
	for _, q := range queues {
		args = append(args, q)
	}

	res, err := dequeueScript.Run(ctx, rs.client,
		[]string{rs.keys.status(queue.StatusPending), rs.keys.status(queue.StatusProcessing)},
		args...,
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, queue.ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("dequeue script: %w", err)
	}

	encoded, ok := res.(string)
	if !ok || encoded == "" {
		return nil, queue.ErrNoTaskToClaim
	}

	var w wireTask
	if err := json.Unmarshal([]byte(encoded), &w); err != nil {
		return nil, fmt.Errorf("decode dequeued task: %w", err)
	}
	return fromWire(&w)
}

// LoadTasks implements queue.Storage.
func (rs *RedisStorage) LoadTasks(ctx context.Context, filter queue.TaskFilter) ([]*queue.Task, error) {
	var ids []string
	var err error
	if filter.Status != nil {
		ids, err = rs.client.ZRevRange(ctx, rs.keys.status(*filter.Status), 0, -1).Result()
	} else {
		ids, err = rs.client.SMembers(ctx, rs.keys.allTasks()).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = rs.keys.task(id)
	}
	raws, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	out := make([]*queue.Task, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var w wireTask
		if err := json.Unmarshal([]byte(s), &w); err != nil {
			continue
		}
		if filter.Queue != "" && w.Queue != filter.Queue {
			continue
		}
		task, err := fromWire(&w)
		if err != nil {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

// GetTask implements queue.Storage.
func (rs *RedisStorage) GetTask(ctx context.Context, id uuid.UUID) (*queue.Task, error) {
	raw, err := rs.client.Get(ctx, rs.keys.task(id.String())).Result()
	if errors.Is(err, redis.Nil) {
		return nil, queue.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	var w wireTask
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return fromWire(&w)
}

// UpdateTask implements queue.Storage.
func (rs *RedisStorage) UpdateTask(ctx context.Context, id uuid.UUID, update queue.TaskUpdate) (*queue.Task, error) {
	task, err := rs.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	fromStatus := task.Status
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

	if err := rs.persist(ctx, task, fromStatus); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask implements queue.Storage.
func (rs *RedisStorage) DeleteTask(ctx context.Context, id uuid.UUID, hard bool) (*queue.Task, error) {
	task, err := rs.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if hard {
		_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rs.keys.task(id.String()))
			pipe.ZRem(ctx, rs.keys.status(task.Status), id.String())
			pipe.SRem(ctx, rs.keys.allTasks(), id.String())
			return nil
		})
		if err != nil {
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

	fromStatus := task.Status
	task.Status = queue.StatusDeleted
	task.UpdatedAt = time.Now()
	if err := rs.persist(ctx, task, fromStatus); err != nil {
		return nil, err
	}
	return task, nil
}

// ReclaimStuck implements queue.Storage.
func (rs *RedisStorage) ReclaimStuck(ctx context.Context) ([]queue.ReclaimOutcome, error) {
	ids, err := rs.client.ZRange(ctx, rs.keys.status(queue.StatusProcessing), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("scan processing set: %w", err)
	}

	var outcomes []queue.ReclaimOutcome
	now := time.Now()
	for _, id := range ids {
		taskID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		task, err := rs.GetTask(ctx, taskID)
		if err != nil {
			continue
		}
		if task.LockedUntil == nil || !now.After(*task.LockedUntil) {
			continue
		}

		task.LockedUntil = nil
		task.LockedBy = nil
		task.UpdatedAt = now
		task.RetryCount++
		task.Log = fmt.Sprintf("stuck: exceeded max processing time %s", task.MaxProcessingTime)

		retried := task.RetryCount <= task.MaxRetries
		if retried {
			task.Status = queue.StatusPending
		} else {
			task.Status = queue.StatusFailed
		}

		if err := rs.persist(ctx, task, queue.StatusProcessing); err != nil {
			continue
		}
		outcomes = append(outcomes, queue.ReclaimOutcome{Task: task.Clone(), Retried: retried})
	}
	return outcomes, nil
}

// Stats implements queue.Storage.
func (rs *RedisStorage) Stats(ctx context.Context) (queue.QueueStats, error) {
	statuses := []queue.TaskStatus{queue.StatusPending, queue.StatusProcessing, queue.StatusDone, queue.StatusFailed, queue.StatusDeleted}

	stats := queue.QueueStats{
		ByStatus: make(map[queue.TaskStatus]int, len(statuses)),
		ByQueue:  make(map[string]int),
	}
	for _, s := range statuses {
		n, err := rs.client.ZCard(ctx, rs.keys.status(s)).Result()
		if err != nil {
			return queue.QueueStats{}, fmt.Errorf("count status %s: %w", s, err)
		}
		stats.ByStatus[s] = int(n)
		stats.Total += int(n)
	}

	tasks, err := rs.LoadTasks(ctx, queue.TaskFilter{})
	if err != nil {
		return stats, nil
	}
	for _, t := range tasks {
		stats.ByQueue[t.Queue]++
	}
	return stats, nil
}

// MoveToDLQ implements queue.DLQStorage.
func (rs *RedisStorage) MoveToDLQ(ctx context.Context, id uuid.UUID) (*queue.DLQEntry, error) {
	task, err := rs.GetTask(ctx, id)
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
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal dlq entry: %w", err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.keys.dlqEntry(entry.ID.String()), body, 0)
		pipe.SAdd(ctx, rs.keys.dlqIndex(), entry.ID.String())
		pipe.Del(ctx, rs.keys.task(id.String()))
		pipe.ZRem(ctx, rs.keys.status(task.Status), id.String())
		pipe.SRem(ctx, rs.keys.allTasks(), id.String())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("move task %s to dlq: %w", id, err)
	}
	return entry, nil
}

// ListDLQ implements queue.DLQStorage.
func (rs *RedisStorage) ListDLQ(ctx context.Context) ([]*queue.DLQEntry, error) {
	ids, err := rs.client.SMembers(ctx, rs.keys.dlqIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("list dlq ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = rs.keys.dlqEntry(id)
	}
	raws, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch dlq entries: %w", err)
	}

	out := make([]*queue.DLQEntry, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var entry queue.DLQEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		out = append(out, &entry)
	}
	return out, nil
}

// persist writes task's current state and moves its id between the
// old and new status sorted sets in a single pipeline.
func (rs *RedisStorage) persist(ctx context.Context, task *queue.Task, fromStatus queue.TaskStatus) error {
	w := toWire(task)
	body, err := marshalWire(w)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.keys.task(w.ID), body, 0)
		if fromStatus != task.Status {
			pipe.ZRem(ctx, rs.keys.status(fromStatus), w.ID)
			pipe.ZAdd(ctx, rs.keys.status(task.Status), redis.Z{
				Score:  score(task.Priority, w.CreatedAtMillis),
				Member: w.ID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist task %s: %w", task.ID, err)
	}
	return nil
}
