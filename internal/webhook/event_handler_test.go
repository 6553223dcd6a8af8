package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/pkg/queue"
	queuememory "github.com/wagate/wagate/internal/pkg/queue/memory"
)

func dequeueOne(t *testing.T, q queue.Queue) queue.Event {
	t.Helper()
	evt, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, evt)
	return *evt
}

func TestNotifyEnqueuesNormalizedEvent(t *testing.T) {
	q := queuememory.NewQueue(8)
	h := NewEventHandler(q, zap.NewNop())

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	h.Notify("s1", engine.MessageEvent{
		ID:        "m1",
		ChatJID:   "123@s.whatsapp.net",
		SenderJID: "456@s.whatsapp.net",
		Body:      "hi",
		Timestamp: ts,
	})

	evt := dequeueOne(t, q)
	require.NotEmpty(t, evt.ID)
	require.Equal(t, "s1", evt.SessionID)
	require.Equal(t, TypeMessage, evt.Type)

	payload, ok := evt.Payload.(MessagePayload)
	require.True(t, ok)
	require.Equal(t, "m1", payload.ID)
	require.Equal(t, "hi", payload.Body)
	require.Equal(t, ts, payload.Timestamp)
}

func TestNotifyEventTypeMapping(t *testing.T) {
	cases := []struct {
		evt  engine.Event
		want string
	}{
		{engine.QREvent{Code: "c"}, TypeQR},
		{engine.ReadyEvent{}, TypeReady},
		{engine.DisconnectedEvent{Reason: "ban"}, TypeDisconnected},
		{engine.AuthFailureEvent{Message: "rejected"}, TypeAuthFailure},
		{engine.StateChangeEvent{State: "connected"}, TypeStateChanged},
	}

	q := queuememory.NewQueue(len(cases))
	h := NewEventHandler(q, zap.NewNop())

	for _, tc := range cases {
		h.Notify("s1", tc.evt)
		evt := dequeueOne(t, q)
		require.Equal(t, tc.want, evt.Type)
	}
}
