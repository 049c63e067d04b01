package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/brugmanjoost/drumbeat/internal/lifecycle"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// ErrBufferFull is returned by Notify when the publisher has fallen behind
// by more than Config.Buffer events. The event is dropped.
var ErrBufferFull = errors.New("notify: event buffer full")

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notify: notifier closed")

const (
	defaultWriteTimeout = 10 * time.Second
	defaultBatchTimeout = 10 * time.Millisecond
	defaultBuffer       = 1024
	maxBatch            = 100
)

// Config configures the Kafka notifier.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	// BatchTimeout bounds how long the writer holds a partial batch.
	BatchTimeout time.Duration
	// RequiredAcks: -1 all replicas, 0 none, 1 leader.
	RequiredAcks int
	// Buffer is the number of events queued ahead of the publisher.
	Buffer int
	Logger logpkg.Logger
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier implements lifecycle.Notifier. Notify only queues the event;
// a background publisher writes it, so callers never wait on the brokers.
type KafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
	logger  logpkg.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

var _ lifecycle.Notifier = (*KafkaNotifier)(nil)

// NewKafka builds a notifier writing to cfg.Topic.
func NewKafka(cfg Config) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("notify: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("notify: topic is required")
	}
	cfg = withDefaults(cfg)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              maxBatch,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: false,
	}
	return newWithWriter(w, cfg), nil
}

func withDefaults(cfg Config) Config {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logpkg.NewNop()
	}
	return cfg
}

func newWithWriter(w messageWriter, cfg Config) *KafkaNotifier {
	cfg = withDefaults(cfg)
	n := &KafkaNotifier{
		writer:  w,
		timeout: cfg.WriteTimeout,
		logger:  cfg.Logger.WithComponent("notify"),
		queue:   make(chan kafka.Message, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues e for publishing as JSON, keyed by queue.
func (n *KafkaNotifier) Notify(_ context.Context, e lifecycle.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(e.Queue),
		Value: value,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	select {
	case n.queue <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

func (n *KafkaNotifier) run() {
	defer close(n.done)
	for first := range n.queue {
		batch := append(make([]kafka.Message, 0, maxBatch), first)
	fill:
		for len(batch) < maxBatch {
			select {
			case m, ok := <-n.queue:
				if !ok {
					break fill
				}
				batch = append(batch, m)
			default:
				break fill
			}
		}
		n.publish(batch)
	}
}

func (n *KafkaNotifier) publish(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.writer.WriteMessages(ctx, batch...); err != nil {
		n.logger.Warn("event publish failed", logpkg.Int("events", len(batch)), logpkg.Err(err))
	}
}

// Close stops accepting events, publishes what is queued and closes the
// writer.
func (n *KafkaNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	return n.writer.Close()
}
