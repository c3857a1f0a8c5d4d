package events

import (
	"context"
	"errors"
	"sync"
)

// DefaultQueueCapacity holds roughly two full sweeps of samples.
const DefaultQueueCapacity = 512

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.New("event queue closed")

// Queue carries events from one producer goroutine to one consumer goroutine.
// The consumer blocks on Events(); there is no polling.
type Queue struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewQueue creates a queue buffering up to capacity events. A non-positive
// capacity uses DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// Push enqueues e, blocking while the queue is full. It returns ctx.Err() if
// ctx ends first and ErrQueueClosed once the queue is closed.
func (q *Queue) Push(ctx context.Context, e Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Events returns the receive side. It is closed after Close once drained.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Len reports the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops further pushes and closes the receive channel. Blocked pushers
// are released with ErrQueueClosed. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}
