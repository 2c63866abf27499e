package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shipdocs/internal/core/logger"
)

// RedisQueue implements Queue on a Redis list. Messages survive a process
// restart, keeping the same at-most-once contract once a message is popped.
type RedisQueue struct {
	client *redis.Client
	key    string

	out    chan string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewRedisQueue connects to Redis and starts the consumer pump.
// The redisURL should be in the format: redis://[:password@]host[:port][/database]
func NewRedisQueue(redisURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &RedisQueue{
		client: redis.NewClient(opts),
		key:    key,
		out:    make(chan string),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.pump(ctx)
	return q, nil
}

// Publish pushes the payload onto the head of the list; the pump pops from
// the tail, preserving enqueue order.
func (q *RedisQueue) Publish(ctx context.Context, payload string) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

// Messages returns the consume channel.
func (q *RedisQueue) Messages() <-chan string {
	return q.out
}

// Close stops the pump and closes the connection.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	<-q.done
	return q.client.Close()
}

func (q *RedisQueue) pump(ctx context.Context) {
	defer close(q.done)
	defer close(q.out)

	for {
		vals, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if ctx.Err() != nil {
			return
		}
		if err == redis.Nil {
			continue
		}
		if err != nil {
			logger.Get().Warn("redis queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// BRPOP returns [key, value].
		select {
		case q.out <- vals[1]:
		case <-ctx.Done():
			return
		}
	}
}
