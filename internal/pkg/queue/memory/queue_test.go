package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagate/wagate/internal/pkg/queue"
)

func TestEnqueueDequeue(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queue.Event{ID: "e1", Type: "message"}))
	require.NoError(t, q.Enqueue(ctx, queue.Event{ID: "e2", Type: "ready"}))

	size, err := q.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), size)

	evt, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, evt)
	require.Equal(t, "e1", evt.ID)

	evt, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, evt)
	require.Equal(t, "e2", evt.ID)
}

func TestDequeueTimeout(t *testing.T) {
	q := NewQueue(4)

	start := time.Now()
	evt, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, evt)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEnqueueFullBuffer(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queue.Event{ID: "e1"}))
	require.ErrorIs(t, q.Enqueue(ctx, queue.Event{ID: "e2"}), ErrQueueFull)
}

func TestClosedQueue(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close()) // idempotent

	require.Error(t, q.Enqueue(context.Background(), queue.Event{ID: "e1"}))

	evt, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.Nil(t, evt)
}

func TestDequeueContextCancelled(t *testing.T) {
	q := NewQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}
