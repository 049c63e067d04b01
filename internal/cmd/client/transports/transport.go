package transports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

// ResultError is a non-ok envelope returned by the server.
type ResultError struct {
	StatusCode int
	Result     string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s (http %d)", e.Result, e.StatusCode)
}

// ListRequest narrows a List call.
type ListRequest struct {
	Queue string
	// Status is a status token; empty lists the default set for the caller.
	Status string
	Filter string
}

// MessagesTransport abstracts how the CLI reaches a drumbeat server.
type MessagesTransport interface {
	Create(ctx context.Context, queue, subject string, requestBody json.RawMessage) (int64, error)
	List(ctx context.Context, req ListRequest) ([]message.Message, error)
	Get(ctx context.Context, queue string, id int64) (message.Message, error)
	Cancel(ctx context.Context, queue string, id int64) error
	Postback(ctx context.Context, queue string, id int64, status string, responseBody json.RawMessage) error
	Delete(ctx context.Context, queue string, id int64) error
	Health(ctx context.Context) error
}
