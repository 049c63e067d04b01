package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brugmanjoost/drumbeat/internal/lifecycle"
	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage/memory"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
	// release, when set, blocks every write until it is closed.
	release chan struct{}
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockWriter) written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.msgs...)
}

func TestNotifyPublishesKeyedJSON(t *testing.T) {
	w := &mockWriter{}
	n := newWithWriter(w, Config{})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := n.Notify(context.Background(), lifecycle.Event{
		Type: lifecycle.EventCompleted, Queue: "builds", ID: 9, Subject: "build-42", Status: message.StatusCompleted, At: at,
	})
	require.NoError(t, err)
	require.NoError(t, n.Close())
	assert.True(t, w.closed)

	msgs := w.written()
	require.Len(t, msgs, 1)
	got := msgs[0]
	assert.Equal(t, "builds", string(got.Key))
	assert.Equal(t, at, got.Time)
	require.Len(t, got.Headers, 1)
	assert.Equal(t, "message.completed", string(got.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(got.Value, &body))
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(9), body["id"])
}

func TestOperationsDoNotWaitForBrokers(t *testing.T) {
	w := &mockWriter{release: make(chan struct{})}
	n := newWithWriter(w, Config{WriteTimeout: time.Minute})

	e, err := lifecycle.New(memory.New(), lifecycle.Options{Notifier: n})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		ctx := context.Background()
		msgID, err := e.Create(ctx, "builds", "build-1", nil)
		if err == nil {
			err = e.Cancel(ctx, "builds", msgID)
		}
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle operation blocked on the event writer")
	}

	close(w.release)
	require.NoError(t, n.Close())
	assert.Len(t, w.written(), 2, "queued events are flushed on close")
}

func TestBufferFullDropsEvents(t *testing.T) {
	w := &mockWriter{release: make(chan struct{})}
	n := newWithWriter(w, Config{Buffer: 1, WriteTimeout: time.Minute})

	var full bool
	for i := 0; i < 10 && !full; i++ {
		err := n.Notify(context.Background(), lifecycle.Event{Type: lifecycle.EventCreated, Queue: "q", ID: int64(i)})
		if errors.Is(err, ErrBufferFull) {
			full = true
			continue
		}
		require.NoError(t, err)
	}
	assert.True(t, full)

	close(w.release)
	require.NoError(t, n.Close())
}

func TestPublishFailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logpkg.NewLogger(logpkg.WithOutput(&buf), logpkg.WithFormat(logpkg.FormatJSON))
	n := newWithWriter(&mockWriter{err: errors.New("leader not available")}, Config{Logger: logger})

	require.NoError(t, n.Notify(context.Background(), lifecycle.Event{Type: lifecycle.EventCreated, Queue: "q"}))
	require.NoError(t, n.Close())

	assert.Contains(t, buf.String(), "event publish failed")
	assert.Contains(t, buf.String(), "leader not available")
}

func TestNotifyAfterClose(t *testing.T) {
	n := newWithWriter(&mockWriter{}, Config{})
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	err := n.Notify(context.Background(), lifecycle.Event{Type: lifecycle.EventCreated, Queue: "q"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewKafkaValidates(t *testing.T) {
	_, err := NewKafka(Config{Topic: "events"})
	assert.Error(t, err)
	_, err = NewKafka(Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	n, err := NewKafka(Config{Brokers: []string{"localhost:9092"}, Topic: "events"})
	require.NoError(t, err)
	assert.NoError(t, n.Close())
}
