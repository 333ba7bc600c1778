// Package queue is a bounded in-process work queue drained by a single consumer.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

const DefaultCapacity = 100

// ErrClosed is returned by Enqueue after Close
var ErrClosed = errors.New("queue closed")

// WorkItem is one unit of background work
type WorkItem struct {
	// Name identifies the item in logs
	Name string
	Run  func(ctx context.Context) error
}

// Queue holds up to its capacity of pending items. Enqueue blocks while it is full.
type Queue struct {
	items  chan WorkItem
	done   chan struct{}
	closed bool
	mu     sync.RWMutex

	closeOnce sync.Once
}

// New creates a queue. A capacity of zero or less uses DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		items: make(chan WorkItem, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue adds item, waiting while the queue is full until ctx is done
func (q *Queue) Enqueue(ctx context.Context, item WorkItem) error {
	if item.Run == nil {
		return fmt.Errorf("work item %q has no Run function", item.Name)
	}

	// Close waits for senders holding the read lock, so nothing lands after it returns
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue waits for the next item until ctx is done or the queue is closed and empty
func (q *Queue) Dequeue(ctx context.Context) (WorkItem, error) {
	select {
	case item := <-q.items:
		return item, nil
	default:
	}

	select {
	case item := <-q.items:
		return item, nil
	case <-q.done:
		// drain whatever was accepted before Close
		select {
		case item := <-q.items:
			return item, nil
		default:
			return WorkItem{}, ErrClosed
		}
	case <-ctx.Done():
		return WorkItem{}, ctx.Err()
	}
}

// Len is the number of pending items
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap is the queue capacity
func (q *Queue) Cap() int {
	return cap(q.items)
}

// Close stops accepting new items. Items already queued can still be dequeued.
func (q *Queue) Close() {
	// wake blocked senders before taking the write lock
	q.closeOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Run drains the queue one item at a time until ctx is done or the queue is
// closed and empty. Item errors and panics are logged and never stop the loop.
func (q *Queue) Run(ctx context.Context) {
	slog.Info("Queue consumer started", "capacity", q.Cap())
	for {
		item, err := q.Dequeue(ctx)
		if err != nil {
			slog.Info("Queue consumer stopped", "reason", err)
			return
		}
		q.execute(ctx, item)
	}
}

func (q *Queue) execute(ctx context.Context, item WorkItem) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Work item panicked", "item", item.Name, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	slog.Info("Processing work item", "item", item.Name, "pending", q.Len())
	if err := item.Run(ctx); err != nil {
		slog.Error("Work item failed", "item", item.Name, "err", err)
		return
	}
	slog.Info("Work item finished", "item", item.Name)
}
