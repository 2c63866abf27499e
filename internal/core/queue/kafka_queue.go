package queue

import (
	"context"
	"fmt"
	"sync"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shipdocs/internal/core/logger"
)

// Writer is the subset of kafka.Writer used by the queue. It exists so tests
// can inject a fake writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reader is the subset of kafka.Reader used by the consumer pump.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue implements Queue on a Kafka topic with a single consumer group
// member. It is the broker-backed alternative to the in-process queue.
type KafkaQueue struct {
	writer Writer
	reader Reader

	out    chan string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewKafkaQueue connects a writer and a group reader to the given broker and
// starts the consumer pump.
func NewKafkaQueue(broker, topic, groupID string) *KafkaQueue {
	w := &kafka.Writer{
		Addr:     kafka.TCP(broker),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaQueue(w, r)
}

// NewKafkaQueueWithClients allows injecting test doubles.
func NewKafkaQueueWithClients(w Writer, r Reader) *KafkaQueue {
	return newKafkaQueue(w, r)
}

func newKafkaQueue(w Writer, r Reader) *KafkaQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &KafkaQueue{
		writer: w,
		reader: r,
		out:    make(chan string),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.pump(ctx)
	return q
}

// Publish writes the payload as a single Kafka message.
func (q *KafkaQueue) Publish(ctx context.Context, payload string) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}

	msg := kafka.Message{Value: []byte(payload)}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Messages returns the consume channel.
func (q *KafkaQueue) Messages() <-chan string {
	return q.out
}

// Close stops the pump and closes the writer and reader.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	<-q.done

	werr := q.writer.Close()
	rerr := q.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

func (q *KafkaQueue) pump(ctx context.Context) {
	defer close(q.done)
	defer close(q.out)

	for {
		m, err := q.reader.FetchMessage(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Get().Warn("kafka queue fetch failed", zap.Error(err))
			continue
		}

		select {
		case q.out <- string(m.Value):
		case <-ctx.Done():
			return
		}

		if err := q.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			logger.Get().Warn("kafka queue commit failed", zap.Error(err))
		}
	}
}
