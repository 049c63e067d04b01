package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

func TestResolveUnion(t *testing.T) {
	p := NewPolicy([]Credential{
		{Token: "t1", Queue: "builds", IsAdmin: true},
		{Token: "t1", Queue: "builds", IsWorker: true},
		{Token: "t1", Queue: "mail", IsWorker: true},
		{Token: "t2", Queue: "builds", IsWorker: true},
	})

	assert.Equal(t, Capabilities{Admin: true, Worker: true}, p.Resolve("t1", "builds"))
	assert.Equal(t, Capabilities{Worker: true}, p.Resolve("t1", "mail"))
	assert.Equal(t, Capabilities{Worker: true}, p.Resolve("t2", "builds"))
	assert.Equal(t, 3, p.Len())
}

func TestResolveExactMatch(t *testing.T) {
	p := NewPolicy([]Credential{{Token: "Secret", Queue: "Builds", IsAdmin: true}})

	assert.Equal(t, Capabilities{}, p.Resolve("secret", "Builds"))
	assert.Equal(t, Capabilities{}, p.Resolve("Secret", "builds"))
	assert.Equal(t, Capabilities{}, p.Resolve("", "Builds"))
	assert.True(t, p.Resolve("Secret", "Builds").Admin)

	var nilPolicy *Policy
	assert.Equal(t, Capabilities{}, nilPolicy.Resolve("Secret", "Builds"))
}

func TestGates(t *testing.T) {
	none := Capabilities{}
	worker := Capabilities{Worker: true}
	admin := Capabilities{Admin: true}

	assert.ErrorIs(t, none.RequireAdmin(), message.ErrAccessDenied)
	assert.ErrorIs(t, worker.RequireAdmin(), message.ErrAccessDenied)
	assert.NoError(t, admin.RequireAdmin())

	assert.ErrorIs(t, none.RequireAdminOrWorker(), message.ErrAccessDenied)
	assert.NoError(t, worker.RequireAdminOrWorker())
	assert.NoError(t, admin.RequireAdminOrWorker())
}

func TestListStatusVisibility(t *testing.T) {
	worker := Capabilities{Worker: true}
	admin := Capabilities{Admin: true}
	completed := message.StatusCompleted
	pending := message.StatusPending

	got, err := worker.ListStatus(nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, message.StatusPending, *got)

	_, err = worker.ListStatus(&completed)
	assert.ErrorIs(t, err, message.ErrAccessDenied)

	got, err = worker.ListStatus(&pending)
	require.NoError(t, err)
	assert.Equal(t, message.StatusPending, *got)

	got, err = admin.ListStatus(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = admin.ListStatus(&completed)
	require.NoError(t, err)
	assert.Equal(t, message.StatusCompleted, *got)
}

func TestCanView(t *testing.T) {
	done := message.Message{Status: message.StatusCompleted}
	open := message.Message{Status: message.StatusPending}

	assert.ErrorIs(t, Capabilities{Worker: true}.CanView(done), message.ErrAccessDenied)
	assert.NoError(t, Capabilities{Worker: true}.CanView(open))
	assert.NoError(t, Capabilities{Admin: true}.CanView(done))
}

func TestTokenFromHeader(t *testing.T) {
	tok, ok := TokenFromHeader(EncodeToken("abc123"))
	require.True(t, ok)
	assert.Equal(t, "abc123", tok)

	tok, ok = TokenFromHeader("Bearer YWJj") // "abc", unpadded-safe length
	require.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = TokenFromHeader("Bearer YWI") // "ab" without padding
	require.True(t, ok)
	assert.Equal(t, "ab", tok)

	for _, h := range []string{"", "Basic YWJj", "Bearer ", "Bearer !!!", "bearer YWJj"} {
		_, ok := TokenFromHeader(h)
		assert.False(t, ok, h)
	}
}

func TestFromHeader(t *testing.T) {
	p := NewPolicy([]Credential{{Token: "w", Queue: "builds", IsWorker: true}})
	assert.True(t, p.FromHeader(EncodeToken("w"), "builds").Worker)
	assert.Equal(t, Capabilities{}, p.FromHeader("Bearer %%%", "builds"))
	assert.Equal(t, Capabilities{}, p.FromHeader(EncodeToken("w"), "mail"))
}
