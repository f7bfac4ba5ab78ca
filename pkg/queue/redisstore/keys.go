package redisstore

import (
	"fmt"

	"github.com/bennyh960/queue-manager/pkg/queue"
)

type keyBuilder struct {
	prefix string
}

func (k keyBuilder) task(id string) string {
	return fmt.Sprintf("%s:task:%s", k.prefix, id)
}

func (k keyBuilder) status(status queue.TaskStatus) string {
	return fmt.Sprintf("%s:queue:%s", k.prefix, status)
}

func (k keyBuilder) allTasks() string {
	return fmt.Sprintf("%s:tasks:all", k.prefix)
}

func (k keyBuilder) dlqIndex() string {
	return fmt.Sprintf("%s:dlq:ids", k.prefix)
}

func (k keyBuilder) dlqEntry(id string) string {
	return fmt.Sprintf("%s:dlq:%s", k.prefix, id)
}
