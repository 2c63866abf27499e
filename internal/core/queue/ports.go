// Package queue provides the document message queue: many producers, exactly
// one consumer, delivery in enqueue order per producer.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing to a closed queue.
var ErrClosed = errors.New("queue is closed")

// Queue is the message transport port. Implementations must never block the
// producer on Publish and must close the Messages channel after Close, once
// any buffered messages have been delivered.
type Queue interface {
	// Publish appends a message to the tail of the queue.
	Publish(ctx context.Context, payload string) error

	// Messages returns the consume channel. There must be exactly one
	// consumer; the channel yields messages in enqueue order and is closed
	// when the queue shuts down.
	Messages() <-chan string

	// Close stops the queue. Buffered messages are still delivered to the
	// consumer before the Messages channel closes.
	Close() error
}
