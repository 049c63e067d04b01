package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// DedupMode selects how Create detects an existing Pending message.
type DedupMode string

const (
	DedupBestEffort DedupMode = "best-effort"
	DedupStrict     DedupMode = "strict"
)

// ParseDedupMode accepts "best-effort" (also the empty string) and "strict".
func ParseDedupMode(s string) (DedupMode, error) {
	switch DedupMode(s) {
	case "", DedupBestEffort:
		return DedupBestEffort, nil
	case DedupStrict:
		return DedupStrict, nil
	default:
		return "", fmt.Errorf("unknown dedup mode %q", s)
	}
}

// Options configures an Engine. Zero values pick defaults.
type Options struct {
	Logger   logpkg.Logger
	Notifier Notifier
	Dedup    DedupMode
	// Clock returns the current time; tests override it.
	Clock func() time.Time
}

// Engine runs lifecycle operations against a gateway.
type Engine struct {
	store     storage.Gateway
	exclusive storage.ExclusiveInserter
	logger    logpkg.Logger
	notifier  Notifier
	dedup     DedupMode
	now       func() time.Time
	metrics   *metrics
}

// ListQuery restricts List.
type ListQuery struct {
	Status *message.Status
	Filter Filter
}

// New builds an Engine. It fails when strict dedup is requested on a
// gateway that cannot insert exclusively.
func New(store storage.Gateway, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("lifecycle: nil gateway")
	}
	e := &Engine{
		store:    store,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		dedup:    opts.Dedup,
		now:      opts.Clock,
		metrics:  getMetrics(),
	}
	if e.logger == nil {
		e.logger = logpkg.NewNop()
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.dedup == "" {
		e.dedup = DedupBestEffort
	}
	if e.dedup == DedupStrict {
		ex, ok := store.(storage.ExclusiveInserter)
		if !ok {
			return nil, fmt.Errorf("lifecycle: gateway %T does not support strict dedup", store)
		}
		e.exclusive = ex
	}
	return e, nil
}

func (e *Engine) timestamp() time.Time { return e.now().UTC() }

func (e *Engine) notify(ctx context.Context, ev Event) {
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Warn("event notification failed",
			logpkg.Str("type", string(ev.Type)),
			logpkg.Str("queue", ev.Queue),
			logpkg.Int64("id", ev.ID),
			logpkg.Err(err),
		)
	}
}

func (e *Engine) committed(ctx context.Context, typ EventType, m message.Message, st message.Status) {
	e.metrics.transitions.WithLabelValues(m.Queue, st.String()).Inc()
	e.notify(ctx, Event{Type: typ, Queue: m.Queue, ID: m.ID, Subject: m.Subject, Status: st, At: e.timestamp()})
}

// Create enqueues a Pending message unless one is already pending for the
// same (queue, subject).
func (e *Engine) Create(ctx context.Context, queue, subject string, requestBody json.RawMessage) (msgID int64, err error) {
	defer func(start time.Time) { e.metrics.observe("create", start, err) }(time.Now())

	if queue == "" || subject == "" {
		return 0, fmt.Errorf("%w: queue and subject are required", message.ErrBadRequest)
	}
	if !message.ValidName(queue) || !message.ValidName(subject) {
		return 0, fmt.Errorf("%w: queue and subject are limited to %d characters", message.ErrBadRequest, message.MaxNameLength)
	}
	d := storage.Draft{
		Queue:       queue,
		Subject:     subject,
		TimeStart:   e.timestamp(),
		RequestBody: message.Body(requestBody),
	}

	if e.exclusive != nil {
		msgID, err = e.exclusive.InsertExclusive(ctx, d)
		if err != nil {
			return 0, err
		}
	} else {
		_, found, err := e.store.FindPending(ctx, queue, subject)
		if err != nil {
			return 0, err
		}
		if found {
			return 0, message.ErrAlreadyScheduled
		}
		msgID, err = e.store.Insert(ctx, d)
		if err != nil {
			return 0, err
		}
	}

	e.logger.Debug("message created", logpkg.Str("queue", queue), logpkg.Int64("id", msgID), logpkg.Str("subject", subject))
	e.committed(ctx, EventCreated, message.Message{ID: msgID, Queue: queue, Subject: subject}, message.StatusPending)
	return msgID, nil
}

// load fetches id and hides messages of other queues.
func (e *Engine) load(ctx context.Context, queue string, msgID int64) (message.Message, error) {
	m, err := e.store.Get(ctx, msgID)
	if err != nil {
		return message.Message{}, err
	}
	if m.Queue != queue {
		return message.Message{}, message.ErrNotFound
	}
	return m, nil
}

// Get returns one message of queue.
func (e *Engine) Get(ctx context.Context, queue string, msgID int64) (m message.Message, err error) {
	defer func(start time.Time) { e.metrics.observe("get", start, err) }(time.Now())
	return e.load(ctx, queue, msgID)
}

// List returns the messages of queue in storage order.
func (e *Engine) List(ctx context.Context, queue string, q ListQuery) (out []message.Message, err error) {
	defer func(start time.Time) { e.metrics.observe("list", start, err) }(time.Now())

	if q.Status != nil && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status", message.ErrBadRequest)
	}
	all, err := e.store.List(ctx, queue, q.Status)
	if err != nil {
		return nil, err
	}
	if !q.Filter.Enabled() {
		return all, nil
	}
	out = make([]message.Message, 0, len(all))
	for _, m := range all {
		if q.Filter.Match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// resolve loads, requires Pending and applies r as a compare-and-swap. A lost
// race is re-read so the caller learns whether the message is gone or was
// resolved by someone else.
func (e *Engine) resolve(ctx context.Context, queue string, msgID int64, r storage.Resolution) (message.Message, error) {
	m, err := e.load(ctx, queue, msgID)
	if err != nil {
		return message.Message{}, err
	}
	if !m.IsPending() {
		return message.Message{}, message.ErrNotPending
	}
	ok, err := e.store.Resolve(ctx, msgID, r)
	if err != nil {
		return message.Message{}, err
	}
	if !ok {
		if _, err := e.load(ctx, queue, msgID); err != nil {
			return message.Message{}, err
		}
		e.logger.Debug("lost transition race", logpkg.Str("queue", queue), logpkg.Int64("id", msgID), logpkg.Str("to", r.Status.String()))
		return message.Message{}, message.ErrNotPending
	}
	return m, nil
}

// Cancel moves a Pending message to Cancelled.
func (e *Engine) Cancel(ctx context.Context, queue string, msgID int64) (err error) {
	defer func(start time.Time) { e.metrics.observe("cancel", start, err) }(time.Now())

	m, err := e.resolve(ctx, queue, msgID, storage.Resolution{Status: message.StatusCancelled})
	if err != nil {
		return err
	}
	e.logger.Debug("message cancelled", logpkg.Str("queue", queue), logpkg.Int64("id", msgID))
	e.committed(ctx, EventCancelled, m, message.StatusCancelled)
	return nil
}

// Feedback records a worker outcome. Only Completed and Failed are accepted;
// the end time and response body are written together with the status.
func (e *Engine) Feedback(ctx context.Context, queue string, msgID int64, st message.Status, responseBody json.RawMessage) (err error) {
	defer func(start time.Time) { e.metrics.observe("feedback", start, err) }(time.Now())

	if !st.IsFeedback() {
		return message.ErrInvalidStatus
	}
	end := e.timestamp()
	m, err := e.resolve(ctx, queue, msgID, storage.Resolution{
		Status:       st,
		TimeEnd:      &end,
		ResponseBody: message.Body(responseBody),
	})
	if err != nil {
		return err
	}
	e.logger.Debug("message resolved", logpkg.Str("queue", queue), logpkg.Int64("id", msgID), logpkg.Str("status", st.String()))
	e.committed(ctx, eventForStatus(st), m, st)
	return nil
}

// Delete removes a message of queue regardless of its state.
func (e *Engine) Delete(ctx context.Context, queue string, msgID int64) (err error) {
	defer func(start time.Time) { e.metrics.observe("delete", start, err) }(time.Now())

	m, err := e.load(ctx, queue, msgID)
	if err != nil {
		return err
	}
	ok, err := e.store.Delete(ctx, msgID)
	if err != nil {
		return err
	}
	if !ok {
		return message.ErrNotFound
	}
	e.logger.Debug("message deleted", logpkg.Str("queue", queue), logpkg.Int64("id", msgID))
	e.notify(ctx, Event{Type: EventDeleted, Queue: queue, ID: msgID, Subject: m.Subject, Status: m.Status, At: e.timestamp()})
	return nil
}

// Ping checks the gateway.
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }
