package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrDiscard marks a job failure that retrying cannot fix. Wrapped errors are
// moved straight to the dead letter list.
var ErrDiscard = errors.New("queue: discard message")

// Job handles one message type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type routed to this job.
	Type() string

	Handle(ctx context.Context, payload json.RawMessage) error
}
