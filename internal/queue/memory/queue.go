// Package memory provides the in-process work queue shared by the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

// Queue is an unbounded FIFO of work items paired with a write-once shutdown
// flag. Dequeue blocks until an item is available or shutdown is declared.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []harvest.WorkItem
	shutdown bool
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item to the tail and wakes one waiter. It never blocks.
// Items must not be enqueued after DeclareShutdown.
func (q *Queue) Enqueue(item harvest.WorkItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// DeclareShutdown records that no more items will arrive and wakes every
// waiter. Calling it more than once has no further effect.
func (q *Queue) DeclareShutdown() {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return
	}
	q.shutdown = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Dequeue pops the head item. Pending items are always handed out, even after
// shutdown; once the queue is empty and shut down it returns
// harvest.ErrQueueDrained. Canceling ctx wakes the caller with the ctx error.
func (q *Queue) Dequeue(ctx context.Context) (harvest.WorkItem, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.shutdown {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("dequeue canceled: %w", err)
		}
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return "", harvest.ErrQueueDrained
	}
	item := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return item, nil
}

// Len reports the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
