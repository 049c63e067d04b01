package id

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
)

// ErrExhausted is returned once the sequence reached math.MaxInt64.
var ErrExhausted = errors.New("id: sequence exhausted")

// Sequence hands out strictly increasing, never reused positive ids.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// NewSequence creates a Sequence whose first id is last+1. Pass the highest id
// ever persisted to resume after a restart.
func NewSequence(last int64) *Sequence {
	if last < 0 {
		last = 0
	}
	return &Sequence{last: last}
}

// Next returns the next id.
func (s *Sequence) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == math.MaxInt64 {
		return 0, ErrExhausted
	}
	s.last++
	return s.last, nil
}

// Observe raises the floor to v when v is higher than anything handed out so
// far. Ids assigned elsewhere (for example restored from storage) are never
// repeated afterwards.
func (s *Sequence) Observe(v int64) {
	s.mu.Lock()
	if v > s.last {
		s.last = v
	}
	s.mu.Unlock()
}

// Last returns the most recently issued or observed id.
func (s *Sequence) Last() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Bytes encodes v as 8 bytes big-endian so byte-wise order matches numeric order.
func Bytes(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// FromBytes decodes an id produced by Bytes. It reports false when b is not 8 bytes.
func FromBytes(b []byte) (int64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}
