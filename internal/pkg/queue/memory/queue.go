package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wagate/wagate/internal/pkg/queue"
)

var ErrQueueFull = errors.New("queue full")

// MemoryQueue is a buffered in-process queue. Enqueue never blocks; when the
// buffer is full the event is rejected so engine callbacks stay fast.
type MemoryQueue struct {
	events chan queue.Event

	closeOnce sync.Once
	closed    chan struct{}
}

func NewQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{
		events: make(chan queue.Event, size),
		closed: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, event queue.Event) error {
	select {
	case <-q.closed:
		return errors.New("queue closed")
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.closed:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case event := <-q.events:
		return &event, nil
	}
}

func (q *MemoryQueue) Size(ctx context.Context) (int64, error) {
	return int64(len(q.events)), nil
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}
