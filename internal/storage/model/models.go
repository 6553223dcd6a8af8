package model

import "time"

// Client is a durable registry record for one messaging session.
type Client struct {
	ID         string    `json:"id"`
	WebhookURL string    `json:"webhookUrl,omitempty"`
	DeviceJID  string    `json:"deviceJid,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SessionState is the lifecycle status reported for a live session.
type SessionState string

const (
	SessionInitializing SessionState = "initializing"
	SessionQRPending    SessionState = "qr_pending"
	SessionReady        SessionState = "ready"
	SessionDisconnected SessionState = "disconnected"
	SessionAuthFailed   SessionState = "auth_failed"
)

// QRArtifact is the latest pairing code for a session, rendered as a
// base64-encoded PNG. Artifacts live only in memory.
type QRArtifact struct {
	SessionID  string    `json:"sessionId"`
	ImageData  string    `json:"imageData"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Message is one stored chat message, inbound or outbound.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	ChatJID   string    `json:"chatJid"`
	SenderJID string    `json:"senderJid,omitempty"`
	FromMe    bool      `json:"fromMe"`
	Type      string    `json:"type"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
