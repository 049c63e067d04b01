package id

import (
	"bytes"
	"math"
	"sync"
	"testing"
)

func TestSequenceMonotonic(t *testing.T) {
	s := NewSequence(0)
	a, err := s.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	b, _ := s.Next()
	if a != 1 || b != 2 {
		t.Fatalf("expected 1,2 got %d,%d", a, b)
	}
}

func TestSequenceResume(t *testing.T) {
	s := NewSequence(41)
	if v, _ := s.Next(); v != 42 {
		t.Fatalf("expected 42 got %d", v)
	}
	s.Observe(10)
	if s.Last() != 42 {
		t.Fatalf("observe must not lower the floor")
	}
	s.Observe(100)
	if v, _ := s.Next(); v != 101 {
		t.Fatalf("expected 101 got %d", v)
	}
}

func TestSequenceConcurrentUnique(t *testing.T) {
	s := NewSequence(0)
	const workers, per = 8, 200
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				v, err := s.Next()
				if err != nil {
					t.Errorf("next: %v", err)
					return
				}
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Fatalf("expected %d unique ids, got %d", workers*per, len(seen))
	}
}

func TestSequenceExhausted(t *testing.T) {
	s := NewSequence(math.MaxInt64)
	if _, err := s.Next(); err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestBytesOrdering(t *testing.T) {
	a, b := Bytes(255), Bytes(256)
	if bytes.Compare(a, b) >= 0 {
		t.Fatalf("expected encoded 255 < 256")
	}
	v, ok := FromBytes(b)
	if !ok || v != 256 {
		t.Fatalf("decode mismatch: %d %v", v, ok)
	}
	if _, ok := FromBytes([]byte{1, 2}); ok {
		t.Fatalf("short input must not decode")
	}
}
