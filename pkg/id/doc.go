// Package id provides the numeric message id sequence.
//
// # Monotonicity
//
// Sequence is safe for concurrent use and never hands out the same id twice
// within a process. Persistent stores restore it from the highest id they
// have written so ids also stay unique across restarts.
//
// # Encoding
//
// Bytes/FromBytes use 8 bytes big-endian so that byte-wise comparison of
// encoded ids preserves numeric order, which the key-value store relies on
// for range scans.
//
// Usage
//
//	seq := id.NewSequence(lastPersisted)
//	next, err := seq.Next()
package id
