package queue

import "time"

// effectivePolicy is the resolved (maxRetries, maxProcessingTime) pair for
// one task, computed once at enqueue time and never re-read mid-attempt.
type effectivePolicy struct {
	maxRetries        int
	maxProcessingTime time.Duration
}

// resolve implements the cascade: task-level override beats
// handler-level default beats engine-level default.
func resolve(taskMaxRetries *int, taskMaxProcessingTime *time.Duration, handlerMaxRetries *int, handlerMaxProcessingTime *time.Duration, engineDefaults Config) effectivePolicy {
	p := effectivePolicy{
		maxRetries:        engineDefaults.MaxRetries,
		maxProcessingTime: engineDefaults.MaxProcessingTime,
	}

	if handlerMaxRetries != nil {
		p.maxRetries = *handlerMaxRetries
	}
	if handlerMaxProcessingTime != nil {
		p.maxProcessingTime = *handlerMaxProcessingTime
	}

	if taskMaxRetries != nil {
		p.maxRetries = *taskMaxRetries
	}
	if taskMaxProcessingTime != nil {
		p.maxProcessingTime = *taskMaxProcessingTime
	}

	return p
}
