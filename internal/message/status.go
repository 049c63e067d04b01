package message

import (
	"encoding/json"
	"fmt"
)

// Status is a lifecycle state. The zero value is invalid.
type Status int

const (
	StatusPending   Status = 1
	StatusCancelled Status = 2
	StatusCompleted Status = 3
	StatusFailed    Status = 4
)

var tokens = map[Status]string{
	StatusPending:   "pending",
	StatusCancelled: "cancelled",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

var byToken = map[string]Status{
	"pending":   StatusPending,
	"cancelled": StatusCancelled,
	"completed": StatusCompleted,
	"failed":    StatusFailed,
}

// IsValidToken reports whether s names one of the four states. Tokens are
// case-sensitive.
func IsValidToken(s string) bool {
	_, ok := byToken[s]
	return ok
}

// ParseStatus converts a wire token to a Status.
func ParseStatus(token string) (Status, error) {
	st, ok := byToken[token]
	if !ok {
		return 0, fmt.Errorf("%w: unknown status %q", ErrBadRequest, token)
	}
	return st, nil
}

// Encode returns the numeric storage code of st.
func Encode(st Status) int { return int(st) }

// Decode maps a stored numeric code back to a Status.
func Decode(code int) (Status, error) {
	st := Status(code)
	if _, ok := tokens[st]; !ok {
		return 0, fmt.Errorf("%w: status code %d", ErrCorruptState, code)
	}
	return st, nil
}

// Code is shorthand for Encode(st).
func (st Status) Code() int { return Encode(st) }

// Valid reports whether st is one of the four states.
func (st Status) Valid() bool {
	_, ok := tokens[st]
	return ok
}

// IsTerminal reports whether no further transition is allowed from st.
func (st Status) IsTerminal() bool {
	return st == StatusCancelled || st == StatusCompleted || st == StatusFailed
}

// IsFeedback reports whether st may be reported by a worker.
func (st Status) IsFeedback() bool {
	return st == StatusCompleted || st == StatusFailed
}

func (st Status) String() string {
	if tok, ok := tokens[st]; ok {
		return tok
	}
	return fmt.Sprintf("status(%d)", int(st))
}

func (st Status) MarshalJSON() ([]byte, error) {
	tok, ok := tokens[st]
	if !ok {
		return nil, fmt.Errorf("%w: status code %d", ErrCorruptState, int(st))
	}
	return json.Marshal(tok)
}

func (st *Status) UnmarshalJSON(b []byte) error {
	var tok string
	if err := json.Unmarshal(b, &tok); err != nil {
		return fmt.Errorf("%w: status must be a string", ErrBadRequest)
	}
	parsed, err := ParseStatus(tok)
	if err != nil {
		return err
	}
	*st = parsed
	return nil
}
