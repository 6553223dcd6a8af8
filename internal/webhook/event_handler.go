package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/pkg/queue"
)

// EventHandler bridges the session manager to the delivery queue. Notify is
// called from engine callbacks, so it only normalizes and enqueues.
type EventHandler struct {
	queue queue.Queue
	log   *zap.Logger
}

func NewEventHandler(q queue.Queue, log *zap.Logger) *EventHandler {
	return &EventHandler{queue: q, log: log}
}

func (h *EventHandler) Notify(sessionID string, evt engine.Event) {
	eventType, payload := normalize(evt)

	queued := queue.Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.queue.Enqueue(ctx, queued); err != nil {
		h.log.Error("webhook enqueue failed",
			zap.String("session_id", sessionID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
