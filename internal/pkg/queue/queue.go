// Package queue decouples event production (engine callbacks) from webhook
// delivery. Backends: an in-process channel queue and a Redis list queue.
package queue

import (
	"context"
	"time"
)

// Event is one engine event bound for webhook delivery.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

type Queue interface {
	Enqueue(ctx context.Context, event Event) error
	// Dequeue blocks up to timeout; a nil event with nil error means the
	// timeout elapsed with nothing queued.
	Dequeue(ctx context.Context, timeout time.Duration) (*Event, error)
	Size(ctx context.Context) (int64, error)
	Close() error
}
