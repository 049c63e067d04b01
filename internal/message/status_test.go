package message

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodesRoundTrip(t *testing.T) {
	all := []Status{StatusPending, StatusCancelled, StatusCompleted, StatusFailed}
	seen := map[int]Status{}
	for _, st := range all {
		code := Encode(st)
		if prev, dup := seen[code]; dup {
			t.Fatalf("code %d shared by %s and %s", code, prev, st)
		}
		seen[code] = st

		back, err := Decode(code)
		require.NoError(t, err)
		assert.Equal(t, st, back)
		assert.True(t, IsValidToken(st.String()))
	}
	assert.Equal(t, 1, StatusPending.Code())
	assert.Equal(t, 4, StatusFailed.Code())
}

func TestDecodeUnknownCodeIsCorrupt(t *testing.T) {
	for _, code := range []int{0, 5, -1, 99} {
		_, err := Decode(code)
		assert.True(t, errors.Is(err, ErrCorruptState), "code %d", code)
	}
}

func TestTokens(t *testing.T) {
	assert.True(t, IsValidToken("pending"))
	assert.False(t, IsValidToken("Pending"))
	assert.False(t, IsValidToken("done"))

	_, err := ParseStatus("archived")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestTerminalStates(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())

	assert.False(t, StatusCancelled.IsFeedback())
	assert.True(t, StatusCompleted.IsFeedback())
}

func TestInvalidStatusIsBadRequest(t *testing.T) {
	assert.ErrorIs(t, ErrInvalidStatus, ErrBadRequest)
}

func TestMessageJSON(t *testing.T) {
	m := Message{
		ID:          3,
		Queue:       "builds",
		Subject:     "build-42",
		Status:      StatusPending,
		TimeStart:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		RequestBody: json.RawMessage(`{"ref":"main"}`),
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"queue":"builds","subject":"build-42","status":"pending",
		"timeStart":"2024-05-01T12:00:00Z","timeEnd":null,"requestBody":{"ref":"main"},"responseBody":null}`, string(b))

	var st Status
	assert.ErrorIs(t, json.Unmarshal([]byte(`"bogus"`), &st), ErrBadRequest)
	require.NoError(t, json.Unmarshal([]byte(`"failed"`), &st))
	assert.Equal(t, StatusFailed, st)
}

func TestBodyNormalisation(t *testing.T) {
	assert.Nil(t, Body(nil))
	assert.Nil(t, Body(json.RawMessage("null")))
	assert.Equal(t, json.RawMessage(`{"a":1}`), Body(json.RawMessage(`{"a":1}`)))
}
