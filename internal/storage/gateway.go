package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

// Draft is a message about to be inserted. The gateway assigns the id and
// stores it as Pending.
type Draft struct {
	Queue       string
	Subject     string
	TimeStart   time.Time
	RequestBody json.RawMessage
}

// Resolution is the terminal state written by Resolve. TimeEnd and
// ResponseBody are only persisted for completed and failed messages.
type Resolution struct {
	Status       message.Status
	TimeEnd      *time.Time
	ResponseBody json.RawMessage
}

// Gateway is the persistence port.
type Gateway interface {
	// Insert stores d as a new Pending message and returns its id.
	Insert(ctx context.Context, d Draft) (int64, error)
	// Get loads a message by id, or message.ErrNotFound.
	Get(ctx context.Context, id int64) (message.Message, error)
	// FindPending returns the Pending message for (queue, subject), if any.
	FindPending(ctx context.Context, queue, subject string) (message.Message, bool, error)
	// List returns the messages of queue in ascending id order, restricted to
	// status when non-nil.
	List(ctx context.Context, queue string, status *message.Status) ([]message.Message, error)
	// Resolve moves id from Pending to r.Status atomically. It reports false
	// without error when the message is missing or no longer Pending.
	Resolve(ctx context.Context, id int64, r Resolution) (bool, error)
	// Delete removes id unconditionally. It reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// ExclusiveInserter is implemented by gateways that can check for an
// existing Pending (queue, subject) and insert in one atomic step. It
// returns message.ErrAlreadyScheduled when a Pending duplicate exists.
type ExclusiveInserter interface {
	InsertExclusive(ctx context.Context, d Draft) (int64, error)
}
