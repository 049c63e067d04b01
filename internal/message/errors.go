package message

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrAccessDenied     = errors.New("access denied")
	ErrNotFound         = errors.New("message not found")
	ErrAlreadyScheduled = errors.New("a pending message with this subject already exists")
	ErrNotPending       = errors.New("message is not pending")
	// ErrInvalidStatus is returned when feedback names a state other than
	// completed or failed. It wraps ErrBadRequest.
	ErrInvalidStatus = fmt.Errorf("%w: feedback status must be completed or failed", ErrBadRequest)
	// ErrCorruptState marks an unknown stored status code.
	ErrCorruptState = errors.New("corrupt message state")
)
