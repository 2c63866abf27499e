package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an unbounded in-process queue. Producers append to an
// internal buffer and never block; a pump goroutine feeds the single consumer.
type MemoryQueue struct {
	mu     sync.Mutex
	buf    []string
	closed bool

	wake chan struct{}
	out  chan string
}

// NewMemoryQueue creates a running in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan string),
	}
	go q.pump()
	return q
}

// Publish appends the payload to the buffer. It never blocks and fails only
// after Close.
func (q *MemoryQueue) Publish(ctx context.Context, payload string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.buf = append(q.buf, payload)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Messages returns the consume channel.
func (q *MemoryQueue) Messages() <-chan string {
	return q.out
}

// Close marks the queue closed. The pump delivers any buffered messages and
// then closes the consume channel.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) pump() {
	defer close(q.out)

	for {
		q.mu.Lock()
		for len(q.buf) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		msg := q.buf[0]
		q.buf = q.buf[1:]
		q.mu.Unlock()

		q.out <- msg
	}
}
