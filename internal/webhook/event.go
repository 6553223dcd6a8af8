// Package webhook turns engine events into HTTP notifications: events are
// normalized, queued, and delivered by a worker pool to the destinations
// configured per session.
package webhook

import (
	"time"

	"github.com/wagate/wagate/internal/engine"
)

// Event types as they appear on the wire.
const (
	TypeQR           = "qr"
	TypeReady        = "ready"
	TypeMessage      = "message"
	TypeDisconnected = "disconnected"
	TypeAuthFailure  = "auth_failure"
	TypeStateChanged = "change_state"
)

// Each event type carries a fixed payload shape.

type QRPayload struct {
	Code string `json:"code"`
}

type ReadyPayload struct{}

type MessagePayload struct {
	ID        string    `json:"id"`
	ChatJID   string    `json:"chatJid"`
	SenderJID string    `json:"senderJid"`
	Body      string    `json:"body,omitempty"`
	FromMe    bool      `json:"fromMe"`
	Timestamp time.Time `json:"timestamp"`
}

type DisconnectedPayload struct {
	Reason string `json:"reason,omitempty"`
}

type AuthFailurePayload struct {
	Message string `json:"message,omitempty"`
}

type StateChangedPayload struct {
	State string `json:"state"`
}

// normalize maps an engine event to its wire type and payload.
func normalize(evt engine.Event) (string, any) {
	switch e := evt.(type) {
	case engine.QREvent:
		return TypeQR, QRPayload{Code: e.Code}
	case engine.ReadyEvent:
		return TypeReady, ReadyPayload{}
	case engine.MessageEvent:
		return TypeMessage, MessagePayload{
			ID:        e.ID,
			ChatJID:   e.ChatJID,
			SenderJID: e.SenderJID,
			Body:      e.Body,
			FromMe:    e.FromMe,
			Timestamp: e.Timestamp,
		}
	case engine.DisconnectedEvent:
		return TypeDisconnected, DisconnectedPayload{Reason: e.Reason}
	case engine.AuthFailureEvent:
		return TypeAuthFailure, AuthFailurePayload{Message: e.Message}
	case engine.StateChangeEvent:
		return TypeStateChanged, StateChangedPayload{State: e.State}
	default:
		return evt.EventType(), nil
	}
}
