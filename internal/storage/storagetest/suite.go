// Package storagetest holds behavioural tests shared by every storage.Gateway.
package storagetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage"
)

// Factory returns a fresh, empty gateway. The suite closes it.
type Factory func(t *testing.T) storage.Gateway

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func draft(queue, subject string) storage.Draft {
	return storage.Draft{Queue: queue, Subject: subject, TimeStart: t0}
}

// Run executes the gateway conformance tests.
func Run(t *testing.T, newGateway Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, g storage.Gateway)
	}{
		{"InsertGet", testInsertGet},
		{"GetMissing", testGetMissing},
		{"IDsIncrease", testIDsIncrease},
		{"FindPending", testFindPending},
		{"ListOrderAndFilter", testList},
		{"ResolveCAS", testResolveCAS},
		{"ResolveMissing", testResolveMissing},
		{"ResolveRace", testResolveRace},
		{"Delete", testDelete},
		{"Ping", testPing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGateway(t)
			t.Cleanup(func() { _ = g.Close() })
			tc.fn(t, g)
		})
	}
	t.Run("InsertExclusive", func(t *testing.T) {
		g := newGateway(t)
		t.Cleanup(func() { _ = g.Close() })
		ex, ok := g.(storage.ExclusiveInserter)
		if !ok {
			t.Skip("gateway does not support exclusive inserts")
		}
		testInsertExclusive(t, g, ex)
	})
}

func testInsertGet(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	d := draft("builds", "build-1")
	d.RequestBody = json.RawMessage(`{"ref":"main"}`)
	id, err := g.Insert(ctx, d)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	m, err := g.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, "builds", m.Queue)
	assert.Equal(t, "build-1", m.Subject)
	assert.Equal(t, message.StatusPending, m.Status)
	assert.True(t, t0.Equal(m.TimeStart))
	assert.Nil(t, m.TimeEnd)
	assert.JSONEq(t, `{"ref":"main"}`, string(m.RequestBody))
	assert.Nil(t, m.ResponseBody)
}

func testGetMissing(t *testing.T, g storage.Gateway) {
	_, err := g.Get(context.Background(), 4242)
	assert.ErrorIs(t, err, message.ErrNotFound)
}

func testIDsIncrease(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	a, err := g.Insert(ctx, draft("q", "a"))
	require.NoError(t, err)
	b, err := g.Insert(ctx, draft("q", "b"))
	require.NoError(t, err)
	ok, err := g.Delete(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)
	c, err := g.Insert(ctx, draft("q", "c"))
	require.NoError(t, err)
	assert.Less(t, a, b)
	assert.Less(t, b, c, "ids must never be reused")
}

func testFindPending(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	_, found, err := g.FindPending(ctx, "builds", "x")
	require.NoError(t, err)
	assert.False(t, found)

	id, err := g.Insert(ctx, draft("builds", "x"))
	require.NoError(t, err)

	m, found, err := g.FindPending(ctx, "builds", "x")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, m.ID)

	_, found, err = g.FindPending(ctx, "other", "x")
	require.NoError(t, err)
	assert.False(t, found, "dedup is per queue")

	end := t0.Add(time.Minute)
	ok, err := g.Resolve(ctx, id, storage.Resolution{Status: message.StatusCompleted, TimeEnd: &end})
	require.NoError(t, err)
	require.True(t, ok)

	_, found, err = g.FindPending(ctx, "builds", "x")
	require.NoError(t, err)
	assert.False(t, found, "resolved messages are not pending")
}

func testList(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	var ids []int64
	for _, s := range []string{"a", "b", "c"} {
		id, err := g.Insert(ctx, draft("builds", s))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := g.Insert(ctx, draft("mail", "a"))
	require.NoError(t, err)

	ok, err := g.Resolve(ctx, ids[1], storage.Resolution{Status: message.StatusCancelled})
	require.NoError(t, err)
	require.True(t, ok)

	all, err := g.List(ctx, "builds", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, m := range all {
		assert.Equal(t, ids[i], m.ID)
		assert.Equal(t, "builds", m.Queue)
	}

	pending := message.StatusPending
	open, err := g.List(ctx, "builds", &pending)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, ids[0], open[0].ID)
	assert.Equal(t, ids[2], open[1].ID)

	cancelled := message.StatusCancelled
	closed, err := g.List(ctx, "builds", &cancelled)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, ids[1], closed[0].ID)

	none, err := g.List(ctx, "empty", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testResolveCAS(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	id, err := g.Insert(ctx, draft("builds", "x"))
	require.NoError(t, err)

	end := t0.Add(time.Minute)
	ok, err := g.Resolve(ctx, id, storage.Resolution{
		Status:       message.StatusFailed,
		TimeEnd:      &end,
		ResponseBody: json.RawMessage(`{"exit":1}`),
	})
	require.NoError(t, err)
	require.True(t, ok)

	m, err := g.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, message.StatusFailed, m.Status)
	require.NotNil(t, m.TimeEnd)
	assert.True(t, end.Equal(*m.TimeEnd))
	assert.JSONEq(t, `{"exit":1}`, string(m.ResponseBody))

	ok, err = g.Resolve(ctx, id, storage.Resolution{Status: message.StatusCancelled})
	require.NoError(t, err)
	assert.False(t, ok, "terminal messages must not transition again")

	m, err = g.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, message.StatusFailed, m.Status)
}

func testResolveMissing(t *testing.T, g storage.Gateway) {
	ok, err := g.Resolve(context.Background(), 999, storage.Resolution{Status: message.StatusCancelled})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testResolveRace(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	id, err := g.Insert(ctx, draft("builds", "race"))
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan message.Status, n)
	for i := 0; i < n; i++ {
		st := message.StatusCancelled
		if i%2 == 0 {
			st = message.StatusCompleted
		}
		wg.Add(1)
		go func(st message.Status) {
			defer wg.Done()
			end := t0
			ok, err := g.Resolve(ctx, id, storage.Resolution{Status: st, TimeEnd: &end})
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			if ok {
				wins <- st
			}
		}(st)
	}
	wg.Wait()
	close(wins)

	var won []message.Status
	for st := range wins {
		won = append(won, st)
	}
	require.Len(t, won, 1, "exactly one transition must commit")

	m, err := g.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, won[0], m.Status)
}

func testDelete(t *testing.T, g storage.Gateway) {
	ctx := context.Background()
	id, err := g.Insert(ctx, draft("builds", "x"))
	require.NoError(t, err)

	ok, err := g.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = g.Get(ctx, id)
	assert.ErrorIs(t, err, message.ErrNotFound)

	_, found, err := g.FindPending(ctx, "builds", "x")
	require.NoError(t, err)
	assert.False(t, found)

	ok, err = g.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPing(t *testing.T, g storage.Gateway) {
	assert.NoError(t, g.Ping(context.Background()))
}

func testInsertExclusive(t *testing.T, g storage.Gateway, ex storage.ExclusiveInserter) {
	ctx := context.Background()
	const n = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, dup int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ex.InsertExclusive(ctx, draft("builds", "same"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case assert.ErrorIs(t, err, message.ErrAlreadyScheduled):
				dup++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, dup)

	pending := message.StatusPending
	list, err := g.List(ctx, "builds", &pending)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
