package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher enqueues work and returns the message id.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload any) (string, error)
}

type Config struct {
	Workers    int           // concurrent consumers
	RetryLimit int           // retries after the first attempt
	RetryDelay time.Duration // delay before a failed message is retried
	PollWait   time.Duration // BRPOP timeout
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode unmarshals a job payload into T.
func Decode[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &v, nil
}
