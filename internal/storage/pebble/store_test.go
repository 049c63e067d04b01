package pebblestore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage"
	"github.com/brugmanjoost/drumbeat/internal/storage/storagetest"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := OpenStore(Options{DataDir: dir, Fsync: FsyncModeNever})
	require.NoError(t, err)
	return s
}

func TestGatewayConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Gateway {
		return newTestStore(t, t.TempDir())
	})
}

func TestSequenceSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newTestStore(t, dir)
	first, err := s.Insert(ctx, storage.Draft{Queue: "q", Subject: "a", TimeStart: time.Now()})
	require.NoError(t, err)
	_, err = s.Delete(ctx, first)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = newTestStore(t, dir)
	defer s.Close()
	second, err := s.Insert(ctx, storage.Draft{Queue: "q", Subject: "b", TimeStart: time.Now()})
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestCorruptRecordSurfaces(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()
	ctx := context.Background()

	msgID, err := s.Insert(ctx, storage.Draft{Queue: "q", Subject: "a", TimeStart: time.Now()})
	require.NoError(t, err)

	raw, err := s.DB().Get(MsgKey(msgID))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	require.NoError(t, s.DB().Apply(ctx, func(b *pebble.Batch) error {
		return b.Set(MsgKey(msgID), raw, nil)
	}))

	_, err = s.Get(ctx, msgID)
	assert.True(t, errors.Is(err, message.ErrCorruptState), "got %v", err)

	_, err = s.List(ctx, "q", nil)
	assert.ErrorIs(t, err, message.ErrCorruptState)

	ok, err := s.Delete(ctx, msgID)
	require.NoError(t, err)
	assert.True(t, ok, "corrupt records can still be deleted")
}

func TestFindPendingIgnoresWrappedSegment(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	defer s.Close()
	ctx := context.Background()

	// 65537 bytes frames like a 1-byte subject and sorts under "x".
	long := "x" + strings.Repeat("y", 1<<16)
	_, err := s.Insert(ctx, storage.Draft{Queue: "jobs", Subject: long, TimeStart: time.Now()})
	require.NoError(t, err)

	_, found, err := s.FindPending(ctx, "jobs", "x")
	require.NoError(t, err)
	assert.False(t, found)

	m, found, err := s.FindPending(ctx, "jobs", long)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, long, m.Subject)
}
