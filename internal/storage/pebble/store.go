package pebblestore

import (
	"context"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	pkgerrors "github.com/pkg/errors"

	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage"
	"github.com/brugmanjoost/drumbeat/pkg/id"
)

// Store is a storage.Gateway on top of DB. Writers serialise on mu, which
// makes the Pending check and the state change of Resolve one atomic step.
// Readers go straight to Pebble.
type Store struct {
	db  *DB
	mu  sync.Mutex
	seq *id.Sequence
}

var (
	_ storage.Gateway           = (*Store)(nil)
	_ storage.ExclusiveInserter = (*Store)(nil)
)

// OpenStore opens the database described by opts and restores the id
// sequence from its last persisted value.
func OpenStore(opts Options) (*Store, error) {
	db, err := Open(opts)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an already opened DB.
func NewStore(db *DB) (*Store, error) {
	var last int64
	raw, err := db.Get(seqKey)
	switch {
	case err == nil:
		v, ok := id.FromBytes(raw)
		if !ok {
			return nil, pkgerrors.Wrap(message.ErrCorruptState, "sequence meta")
		}
		last = v
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return nil, pkgerrors.Wrap(err, "failed to read sequence meta")
	}
	return &Store{db: db, seq: id.NewSequence(last)}, nil
}

// DB exposes the underlying database.
func (s *Store) DB() *DB { return s.db }

func (s *Store) insertLocked(ctx context.Context, d storage.Draft) (int64, error) {
	msgID, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	m := message.Message{
		ID:          msgID,
		Queue:       d.Queue,
		Subject:     d.Subject,
		Status:      message.StatusPending,
		TimeStart:   d.TimeStart,
		RequestBody: d.RequestBody,
	}
	rec, err := EncodeRecord(m)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to encode message")
	}

	err = s.db.Apply(ctx, func(b *pebble.Batch) error {
		_ = b.Set(MsgKey(msgID), rec, nil)
		_ = b.Set(QueueKey(d.Queue, msgID), []byte{byte(message.StatusPending.Code())}, nil)
		_ = b.Set(PendingKey(d.Queue, d.Subject, msgID), nil, nil)
		return b.Set(seqKey, id.Bytes(msgID), nil)
	})
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to insert message")
	}
	return msgID, nil
}

func (s *Store) Insert(ctx context.Context, d storage.Draft) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(ctx, d)
}

func (s *Store) InsertExclusive(ctx context.Context, d storage.Draft) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found, err := s.FindPending(ctx, d.Queue, d.Subject)
	if err != nil {
		return 0, err
	}
	if found {
		return 0, message.ErrAlreadyScheduled
	}
	return s.insertLocked(ctx, d)
}

func (s *Store) Get(_ context.Context, msgID int64) (message.Message, error) {
	raw, err := s.db.Get(MsgKey(msgID))
	if errors.Is(err, pebble.ErrNotFound) {
		return message.Message{}, message.ErrNotFound
	}
	if err != nil {
		return message.Message{}, pkgerrors.Wrap(err, "failed to read message")
	}
	return DecodeRecord(msgID, raw)
}

// scanIDs returns the ids encoded in the keys under prefix, in key order.
// keep, when non-nil, filters on the index value.
func (s *Store) scanIDs(prefix []byte, keep func(val []byte) bool) ([]int64, error) {
	var ids []int64
	err := s.db.Scan(prefix, func(key, val []byte) error {
		if keep != nil && !keep(val) {
			return nil
		}
		msgID, ok := idSuffix(key)
		if !ok {
			return pkgerrors.Wrap(message.ErrCorruptState, "malformed index key")
		}
		ids = append(ids, msgID)
		return nil
	})
	if errors.Is(err, message.ErrCorruptState) {
		return nil, err
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to scan index")
	}
	return ids, nil
}

func (s *Store) FindPending(ctx context.Context, queue, subject string) (message.Message, bool, error) {
	ids, err := s.scanIDs(PendingPrefix(queue, subject), nil)
	if err != nil {
		return message.Message{}, false, err
	}
	for _, msgID := range ids {
		m, err := s.Get(ctx, msgID)
		if errors.Is(err, message.ErrNotFound) {
			continue
		}
		if err != nil {
			return message.Message{}, false, err
		}
		// Index prefixes are length-framed, not escaped; trust the record.
		if m.IsPending() && m.Queue == queue && m.Subject == subject {
			return m, true, nil
		}
	}
	return message.Message{}, false, nil
}

func (s *Store) List(ctx context.Context, queue string, status *message.Status) ([]message.Message, error) {
	var keep func([]byte) bool
	if status != nil {
		code := byte(status.Code())
		keep = func(val []byte) bool { return len(val) == 1 && val[0] == code }
	}
	ids, err := s.scanIDs(QueuePrefix(queue), keep)
	if err != nil {
		return nil, err
	}
	out := make([]message.Message, 0, len(ids))
	for _, msgID := range ids {
		m, err := s.Get(ctx, msgID)
		if errors.Is(err, message.ErrNotFound) {
			// deleted between the scan and the read
			continue
		}
		if err != nil {
			return nil, err
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) Resolve(ctx context.Context, msgID int64, r storage.Resolution) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Get(ctx, msgID)
	if errors.Is(err, message.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !m.IsPending() {
		return false, nil
	}

	m.Status = r.Status
	if r.Status.IsFeedback() {
		m.TimeEnd = r.TimeEnd
		m.ResponseBody = r.ResponseBody
	}
	rec, err := EncodeRecord(m)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to encode message")
	}

	err = s.db.Apply(ctx, func(b *pebble.Batch) error {
		_ = b.Set(MsgKey(msgID), rec, nil)
		_ = b.Set(QueueKey(m.Queue, msgID), []byte{byte(r.Status.Code())}, nil)
		return b.Delete(PendingKey(m.Queue, m.Subject, msgID), nil)
	})
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to update message")
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, msgID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.Get(MsgKey(msgID))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to read message")
	}

	err = s.db.Apply(ctx, func(b *pebble.Batch) error {
		// A corrupt record cannot tell us its index keys; drop the record anyway.
		if m, err := DecodeRecord(msgID, raw); err == nil {
			_ = b.Delete(QueueKey(m.Queue, msgID), nil)
			_ = b.Delete(PendingKey(m.Queue, m.Subject, msgID), nil)
		}
		return b.Delete(MsgKey(msgID), nil)
	})
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to delete message")
	}
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.CheckHealth(ctx) }

func (s *Store) Close() error { return s.db.Close() }
