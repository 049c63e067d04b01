package access

import (
	"fmt"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

// Credential is one configured grant.
type Credential struct {
	Token    string `json:"token" yaml:"token" toml:"token" validate:"required"`
	Queue    string `json:"queue" yaml:"queue" toml:"queue" validate:"required"`
	IsAdmin  bool   `json:"isAdmin" yaml:"isAdmin" toml:"isAdmin"`
	IsWorker bool   `json:"isWorker" yaml:"isWorker" toml:"isWorker"`
}

// Capabilities are the roles a caller holds on one queue.
type Capabilities struct {
	Admin  bool
	Worker bool
}

type grantKey struct {
	token string
	queue string
}

// Policy is an immutable lookup table built from credentials.
type Policy struct {
	grants map[grantKey]Capabilities
}

// NewPolicy folds creds into a (token, queue) table.
func NewPolicy(creds []Credential) *Policy {
	p := &Policy{grants: make(map[grantKey]Capabilities, len(creds))}
	for _, c := range creds {
		k := grantKey{token: c.Token, queue: c.Queue}
		caps := p.grants[k]
		caps.Admin = caps.Admin || c.IsAdmin
		caps.Worker = caps.Worker || c.IsWorker
		p.grants[k] = caps
	}
	return p
}

// Resolve returns the capabilities of token on queue. An empty token never
// matches.
func (p *Policy) Resolve(token, queue string) Capabilities {
	if p == nil || token == "" {
		return Capabilities{}
	}
	return p.grants[grantKey{token: token, queue: queue}]
}

// Len returns the number of distinct (token, queue) pairs.
func (p *Policy) Len() int { return len(p.grants) }

// RequireAdmin fails unless the caller is an admin on the queue.
func (c Capabilities) RequireAdmin() error {
	if !c.Admin {
		return fmt.Errorf("%w: admin capability required", message.ErrAccessDenied)
	}
	return nil
}

// RequireAdminOrWorker fails unless the caller is an admin or a worker.
func (c Capabilities) RequireAdminOrWorker() error {
	if !c.Admin && !c.Worker {
		return fmt.Errorf("%w: admin or worker capability required", message.ErrAccessDenied)
	}
	return nil
}

// ListStatus applies the visibility rule to a list filter. Non-admins get
// Pending when they omit the filter and are denied any other state.
func (c Capabilities) ListStatus(requested *message.Status) (*message.Status, error) {
	if c.Admin {
		return requested, nil
	}
	if requested == nil {
		pending := message.StatusPending
		return &pending, nil
	}
	if *requested != message.StatusPending {
		return nil, fmt.Errorf("%w: only pending messages are visible", message.ErrAccessDenied)
	}
	return requested, nil
}

// CanView applies the visibility rule to a single fetched message.
func (c Capabilities) CanView(m message.Message) error {
	if c.Admin || m.IsPending() {
		return nil
	}
	return fmt.Errorf("%w: only pending messages are visible", message.ErrAccessDenied)
}
