// Package memory is an in-process storage.Gateway. State is lost on restart;
// it backs tests and ephemeral deployments.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage"
	"github.com/brugmanjoost/drumbeat/pkg/id"
)

type row struct {
	mu  sync.Mutex
	msg message.Message
	// gone is set under mu when the row is deleted so a concurrent Resolve
	// holding a stale pointer does not resurrect it.
	gone bool
}

type pendingKey struct {
	queue   string
	subject string
}

// Store keeps messages in maps guarded by mu. Each row carries its own lock
// so transitions of different messages do not contend.
// Lock order: row.mu before Store.mu.
type Store struct {
	mu      sync.RWMutex
	rows    map[int64]*row
	pending map[pendingKey]map[int64]struct{}
	seq     *id.Sequence
}

var (
	_ storage.Gateway           = (*Store)(nil)
	_ storage.ExclusiveInserter = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		rows:    make(map[int64]*row),
		pending: make(map[pendingKey]map[int64]struct{}),
		seq:     id.NewSequence(0),
	}
}

func clone(m message.Message) message.Message {
	out := m
	if m.TimeEnd != nil {
		te := *m.TimeEnd
		out.TimeEnd = &te
	}
	out.RequestBody = append(json.RawMessage(nil), m.RequestBody...)
	out.ResponseBody = append(json.RawMessage(nil), m.ResponseBody...)
	if len(out.RequestBody) == 0 {
		out.RequestBody = nil
	}
	if len(out.ResponseBody) == 0 {
		out.ResponseBody = nil
	}
	return out
}

func (s *Store) insertLocked(d storage.Draft) (int64, error) {
	next, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	s.rows[next] = &row{msg: message.Message{
		ID:          next,
		Queue:       d.Queue,
		Subject:     d.Subject,
		Status:      message.StatusPending,
		TimeStart:   d.TimeStart,
		RequestBody: message.Body(append(json.RawMessage(nil), d.RequestBody...)),
	}}
	k := pendingKey{d.Queue, d.Subject}
	if s.pending[k] == nil {
		s.pending[k] = make(map[int64]struct{}, 1)
	}
	s.pending[k][next] = struct{}{}
	return next, nil
}

func (s *Store) Insert(_ context.Context, d storage.Draft) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(d)
}

func (s *Store) InsertExclusive(_ context.Context, d storage.Draft) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending[pendingKey{d.Queue, d.Subject}]) > 0 {
		return 0, message.ErrAlreadyScheduled
	}
	return s.insertLocked(d)
}

func (s *Store) lookup(id int64) *row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[id]
}

func (s *Store) Get(_ context.Context, id int64) (message.Message, error) {
	r := s.lookup(id)
	if r == nil {
		return message.Message{}, message.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return message.Message{}, message.ErrNotFound
	}
	return clone(r.msg), nil
}

// FindPending returns the lowest Pending id for the pair. More than one can
// exist only when best-effort inserts raced.
func (s *Store) FindPending(ctx context.Context, queue, subject string) (message.Message, bool, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.pending[pendingKey{queue, subject}]))
	for id := range s.pending[pendingKey{queue, subject}] {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if err == nil && m.IsPending() {
			return m, true, nil
		}
	}
	return message.Message{}, false, nil
}

func (s *Store) unindexLocked(k pendingKey, id int64) {
	delete(s.pending[k], id)
	if len(s.pending[k]) == 0 {
		delete(s.pending, k)
	}
}

func (s *Store) List(_ context.Context, queue string, status *message.Status) ([]message.Message, error) {
	s.mu.RLock()
	rows := make([]*row, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r)
	}
	s.mu.RUnlock()

	out := make([]message.Message, 0)
	for _, r := range rows {
		r.mu.Lock()
		m, gone := r.msg, r.gone
		if !gone && m.Queue == queue && (status == nil || m.Status == *status) {
			out = append(out, clone(m))
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Resolve(_ context.Context, id int64, res storage.Resolution) (bool, error) {
	r := s.lookup(id)
	if r == nil {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone || r.msg.Status != message.StatusPending {
		return false, nil
	}
	r.msg.Status = res.Status
	if res.Status.IsFeedback() {
		if res.TimeEnd != nil {
			te := *res.TimeEnd
			r.msg.TimeEnd = &te
		}
		r.msg.ResponseBody = message.Body(append(json.RawMessage(nil), res.ResponseBody...))
	}

	k := pendingKey{r.msg.Queue, r.msg.Subject}
	s.mu.Lock()
	s.unindexLocked(k, id)
	s.mu.Unlock()
	return true, nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	r := s.lookup(id)
	if r == nil {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return false, nil
	}
	r.gone = true

	k := pendingKey{r.msg.Queue, r.msg.Subject}
	s.mu.Lock()
	delete(s.rows, id)
	s.unindexLocked(k, id)
	s.mu.Unlock()
	return true, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
