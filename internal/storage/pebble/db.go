package pebblestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// FsyncMode selects when committed batches reach the WAL on disk.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs every commit.
	FsyncModeAlways
	// FsyncModeInterval syncs every commit but lets Pebble group concurrent
	// commits within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever leaves syncing to Pebble.
	FsyncModeNever
)

const defaultSyncInterval = 5 * time.Millisecond

// ParseFsyncMode maps "always", "interval" and "never" to a FsyncMode. The
// empty string is FsyncModeUnspecified.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FsyncModeUnspecified, nil
	case "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	default:
		return FsyncModeUnspecified, fmt.Errorf("pebble: unknown fsync mode %q", s)
	}
}

func (m FsyncMode) syncs() bool {
	return m == FsyncModeAlways || m == FsyncModeInterval
}

// Options configures Open.
type Options struct {
	DataDir       string
	Fsync         FsyncMode
	FsyncInterval time.Duration
	// PebbleOptions is passed through to pebble.Open. Nil means defaults.
	PebbleOptions *pebble.Options
	Metrics       MetricsHook
	// Logger receives Pebble's own log lines at debug level.
	Logger logpkg.Logger
}

// MetricsHook observes storage calls.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveScan(elapsed time.Duration, keys int)
	ObserveCommit(elapsed time.Duration, ops int, bytes int)
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(time.Duration, int)        {}
func (NoopMetrics) ObserveScan(time.Duration, int)        {}
func (NoopMetrics) ObserveCommit(time.Duration, int, int) {}

// DB is the message database: point reads, prefix scans and atomic batches.
type DB struct {
	inner   *pebble.DB
	commit  *pebble.WriteOptions
	metrics MetricsHook
}

type pebbleLogger struct{ l logpkg.Logger }

func (p pebbleLogger) Infof(format string, args ...interface{})  { p.l.Debugf(format, args...) }
func (p pebbleLogger) Errorf(format string, args ...interface{}) { p.l.Errorf(format, args...) }
func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	p.l.Fatal(fmt.Sprintf(format, args...))
}

// Open creates or opens the database in opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	if opts.Logger != nil {
		po.Logger = pebbleLogger{l: opts.Logger}
	}

	switch opts.Fsync {
	case FsyncModeInterval:
		interval := opts.FsyncInterval
		if interval <= 0 {
			interval = defaultSyncInterval
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	case FsyncModeUnspecified:
		po.WALMinSyncInterval = func() time.Duration { return defaultSyncInterval }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	commit := pebble.NoSync
	if opts.Fsync.syncs() {
		commit = pebble.Sync
	}
	return &DB{inner: inner, commit: commit, metrics: metrics}, nil
}

func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Get returns a copy of the value for key, or pebble.ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := bytes.Clone(val)
	db.metrics.ObserveRead(time.Since(start), len(out))
	return out, nil
}

// Scan calls fn for every key under prefix in key order. The slices passed
// to fn are only valid for the duration of the call.
func (db *DB) Scan(prefix []byte, fn func(key, val []byte) error) error {
	start := time.Now()
	it, err := db.inner.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return err
	}
	n := 0
	for it.First(); it.Valid(); it.Next() {
		n++
		if err := fn(it.Key(), it.Value()); err != nil {
			_ = it.Close()
			return err
		}
	}
	db.metrics.ObserveScan(time.Since(start), n)
	if err := it.Error(); err != nil {
		_ = it.Close()
		return err
	}
	return it.Close()
}

// Apply builds a batch with fn and commits it atomically. Nothing is written
// when fn returns an error.
func (db *DB) Apply(ctx context.Context, fn func(b *pebble.Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := db.inner.NewBatch()
	defer b.Close()
	if err := fn(b); err != nil {
		return err
	}
	if b.Empty() {
		return nil
	}
	start := time.Now()
	ops, size := int(b.Count()), b.Len()
	err := b.Commit(db.commit)
	db.metrics.ObserveCommit(time.Since(start), ops, size)
	return err
}

// CheckHealth confirms the database can still serve reads.
func (db *DB) CheckHealth(ctx context.Context) error {
	if db == nil || db.inner == nil {
		return errors.New("pebble: db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := db.inner.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}
