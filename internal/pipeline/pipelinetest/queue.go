package pipelinetest

import (
	"context"
	"sync"

	"scout/internal/model"
)

// MemQueue records published work items per queue name
type MemQueue struct {
	mu        sync.Mutex
	published map[string][]model.WorkItem

	// FailFor makes publishes to the named queues fail with the given error
	FailFor map[string]error
}

func NewMemQueue() *MemQueue {
	return &MemQueue{
		published: make(map[string][]model.WorkItem),
	}
}

func (q *MemQueue) PublishWorkItem(ctx context.Context, queueName string, item model.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err, ok := q.FailFor[queueName]; ok && err != nil {
		return err
	}
	q.published[queueName] = append(q.published[queueName], item)
	return nil
}

// Published returns everything published to the queue so far
func (q *MemQueue) Published(queueName string) []model.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.WorkItem(nil), q.published[queueName]...)
}

// Drain removes and returns the pending work items for the queue
func (q *MemQueue) Drain(queueName string) []model.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.published[queueName]
	q.published[queueName] = nil
	return out
}
