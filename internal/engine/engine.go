// Package engine abstracts the embedded messaging engine behind a small
// surface so the session manager and the messaging facade never touch
// protocol types directly.
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrChatNotFound is returned when a chat id cannot be resolved for the
// session, either because the id is malformed or no such chat is known.
var ErrChatNotFound = errors.New("engine: chat not found")

// Engine starts session handles and owns their durable credential material.
type Engine interface {
	// Start brings up a handle for the session and begins pushing events
	// into sink. The handle is live immediately; authentication may still
	// be pending (a QR event follows when pairing is required).
	Start(ctx context.Context, sessionID string, sink EventSink) (Handle, error)
	// Erase removes the session's locally stored credential material.
	Erase(sessionID string) error
}

// EventSink receives engine events. Implementations must not block.
type EventSink func(evt Event)

// Handle is one live engine connection.
type Handle interface {
	SessionID() string
	// Authenticated reports whether the engine holds paired credentials.
	Authenticated() bool
	// State returns the last connection state the engine reported; ok is
	// false when the engine has not reported one yet.
	State() (state string, ok bool)

	SendText(ctx context.Context, to, body string) (string, error)
	SendMedia(ctx context.Context, to string, media Media) (string, error)
	// SendVoice delivers pre-encoded ogg/opus audio as a push-to-talk note.
	SendVoice(ctx context.Context, to string, oggOpus []byte, seconds uint32) (string, error)
	React(ctx context.Context, chatID, messageID, emoji string) error
	Contacts(ctx context.Context) ([]Contact, error)
	// ChatMessages returns the most recent messages of the chat, newest
	// first. ErrChatNotFound when the chat cannot be resolved.
	ChatMessages(ctx context.Context, chatID string, limit int) ([]ChatMessage, error)

	// Logout invalidates the pairing with the remote service.
	Logout(ctx context.Context) error
	// Destroy detaches event handlers and disconnects without logging out.
	Destroy()
}

// Media is an outbound attachment.
type Media struct {
	MimeType string
	Data     []byte
	Caption  string
	FileName string
}

type Contact struct {
	JID      string `json:"jid"`
	Name     string `json:"name,omitempty"`
	PushName string `json:"pushName,omitempty"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	ChatJID   string    `json:"chatJid"`
	SenderJID string    `json:"senderJid,omitempty"`
	FromMe    bool      `json:"fromMe"`
	Type      string    `json:"type"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is the closed set of engine notifications.
type Event interface {
	EventType() string
}

// QREvent carries a fresh pairing code. Codes expire quickly and each new
// one supersedes the previous.
type QREvent struct {
	Code string
}

// ReadyEvent fires when the session is authenticated and connected.
type ReadyEvent struct{}

// MessageEvent is an inbound chat message.
type MessageEvent struct {
	ID        string
	ChatJID   string
	SenderJID string
	Body      string
	FromMe    bool
	Timestamp time.Time
}

// DisconnectedEvent fires when the engine loses its connection.
type DisconnectedEvent struct {
	Reason string
}

// AuthFailureEvent fires when pairing or credential validation fails.
type AuthFailureEvent struct {
	Message string
}

// StateChangeEvent reports engine connection-state transitions that do not
// map to one of the dedicated events.
type StateChangeEvent struct {
	State string
}

func (QREvent) EventType() string           { return "qr" }
func (ReadyEvent) EventType() string        { return "ready" }
func (MessageEvent) EventType() string      { return "message" }
func (DisconnectedEvent) EventType() string { return "disconnected" }
func (AuthFailureEvent) EventType() string  { return "auth_failure" }
func (StateChangeEvent) EventType() string  { return "change_state" }
