// Package redisstore implements queue.Storage on Redis: one string key
// per task, one sorted set per status scored so that descending score
// yields priority-then-age order, and a single atomic Lua script driving
// Dequeue across concurrent worker processes.
package redisstore

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

// wireTask is the JSON shape stored at {prefix}:task:{id}. Timestamps are
// carried as unix millis so the Lua dequeue script can compare and score
// them without a datetime library.
type wireTask struct {
	ID                      string `json:"id"`
	Queue                   string `json:"queue"`
	Handler                 string `json:"handler"`
	PayloadB64              string `json:"payload"`
	Status                  string `json:"status"`
	Priority                int64  `json:"priority"`
	MaxRetries              int    `json:"max_retries"`
	MaxProcessingTimeMillis int64  `json:"max_processing_time_millis"`
	RetryCount              int    `json:"retry_count"`
	Log                     string `json:"log"`
	ScheduledAtMillis       int64  `json:"scheduled_at_millis"`
	LockedUntilMillis       int64  `json:"locked_until_millis"`
	LockedBy                string `json:"locked_by"`
	ProcessedAtMillis       int64  `json:"processed_at_millis"`
	CreatedAtMillis         int64  `json:"created_at_millis"`
	UpdatedAtMillis         int64  `json:"updated_at_millis"`
}

func toWire(t *queue.Task) *wireTask {
	w := &wireTask{
		ID:                      t.ID.String(),
		Queue:                   t.Queue,
		Handler:                 t.Handler,
		PayloadB64:              base64.StdEncoding.EncodeToString(t.Payload),
		Status:                  string(t.Status),
		Priority:                int64(t.Priority),
		MaxRetries:              t.MaxRetries,
		MaxProcessingTimeMillis: t.MaxProcessingTime.Milliseconds(),
		RetryCount:              t.RetryCount,
		Log:                     t.Log,
		ScheduledAtMillis:       t.ScheduledAt.UnixMilli(),
		CreatedAtMillis:         t.CreatedAt.UnixMilli(),
		UpdatedAtMillis:         t.UpdatedAt.UnixMilli(),
	}
	if t.LockedUntil != nil {
		w.LockedUntilMillis = t.LockedUntil.UnixMilli()
	}
	if t.LockedBy != nil {
		w.LockedBy = t.LockedBy.String()
	}
	if t.ProcessedAt != nil {
		w.ProcessedAtMillis = t.ProcessedAt.UnixMilli()
	}
	return w
}

func fromWire(w *wireTask) (*queue.Task, error) {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(w.PayloadB64)
	if err != nil {
		return nil, err
	}

	t := &queue.Task{
		ID:                id,
		Queue:             w.Queue,
		Handler:           w.Handler,
		Payload:           payload,
		Status:            queue.TaskStatus(w.Status),
		Priority:          queue.Priority(w.Priority),
		MaxRetries:        w.MaxRetries,
		MaxProcessingTime: time.Duration(w.MaxProcessingTimeMillis) * time.Millisecond,
		RetryCount:        w.RetryCount,
		Log:               w.Log,
		ScheduledAt:       time.UnixMilli(w.ScheduledAtMillis),
		CreatedAt:         time.UnixMilli(w.CreatedAtMillis),
		UpdatedAt:         time.UnixMilli(w.UpdatedAtMillis),
	}
	if w.LockedUntilMillis > 0 {
		lu := time.UnixMilli(w.LockedUntilMillis)
		t.LockedUntil = &lu
	}
	if w.LockedBy != "" {
		lb, err := uuid.Parse(w.LockedBy)
		if err == nil {
			t.LockedBy = &lb
		}
	}
	if w.ProcessedAtMillis > 0 {
		pa := time.UnixMilli(w.ProcessedAtMillis)
		t.ProcessedAt = &pa
	}
	return t, nil
}

func score(priority queue.Priority, createdAtMillis int64) float64 {
	return float64(priority)*1e6 - float64(createdAtMillis)
}

func marshalWire(w *wireTask) (string, error) {
	b, err := json.Marshal(w)
	return string(b), err
}
