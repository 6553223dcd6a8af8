// Package messaging is the outbound-operations facade: it resolves the live
// session handle, enforces the readiness gate for plain text, and funnels
// voice notes through the transcoder before handing audio to the engine.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/media"
	"github.com/wagate/wagate/internal/storage/model"
)

// ErrNotReady is returned when a send requires an authenticated session and
// the session is still waiting for its QR scan.
var ErrNotReady = errors.New("messaging: session is awaiting qr authentication")

const defaultHistoryLimit = 50

// Voice notes are encoded at this bitrate; used to estimate duration.
const voiceBitrateBps = 24000

// SessionDirectory is the slice of the session manager the facade needs.
type SessionDirectory interface {
	Handle(id string) (engine.Handle, error)
	Status(id string) (model.SessionState, error)
}

type Service struct {
	sessions   SessionDirectory
	transcoder *media.Transcoder
	log        *zap.Logger
}

func NewService(sessions SessionDirectory, transcoder *media.Transcoder, log *zap.Logger) *Service {
	return &Service{sessions: sessions, transcoder: transcoder, log: log}
}

// SendText delivers a plain text message. This is the one operation gated on
// session readiness: a session still showing its QR rejects the send.
func (s *Service) SendText(ctx context.Context, sessionID, to, body string) (string, error) {
	h, err := s.sessions.Handle(sessionID)
	if err != nil {
		return "", err
	}

	state, err := s.sessions.Status(sessionID)
	if err != nil {
		return "", err
	}
	if state == model.SessionQRPending {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrNotReady)
	}

	return h.SendText(ctx, to, body)
}

// SendMedia delivers an attachment. data is base64, optionally with a
// data-URL prefix.
func (s *Service) SendMedia(ctx context.Context, sessionID, to, mimeType, data, caption, fileName string) (string, error) {
	h, err := s.sessions.Handle(sessionID)
	if err != nil {
		return "", err
	}

	raw, err := media.DecodePayload(data)
	if err != nil {
		return "", err
	}

	return h.SendMedia(ctx, to, engine.Media{
		MimeType: mimeType,
		Data:     raw,
		Caption:  caption,
		FileName: fileName,
	})
}

// SendVoiceNote transcodes the audio first; a conversion failure surfaces
// untouched and nothing reaches the engine.
func (s *Service) SendVoiceNote(ctx context.Context, sessionID, to, mimeType, data string) (string, error) {
	h, err := s.sessions.Handle(sessionID)
	if err != nil {
		return "", err
	}

	ogg, err := s.transcoder.ToVoiceNote(ctx, mimeType, data)
	if err != nil {
		return "", err
	}

	seconds := uint32(len(ogg) * 8 / voiceBitrateBps)
	return h.SendVoice(ctx, to, ogg, seconds)
}

func (s *Service) Contacts(ctx context.Context, sessionID string) ([]engine.Contact, error) {
	h, err := s.sessions.Handle(sessionID)
	if err != nil {
		return nil, err
	}
	return h.Contacts(ctx)
}

// ChatHistory returns the most recent messages of a chat. A non-positive
// limit falls back to the default; an unresolvable chat fails regardless of
// the limit.
func (s *Service) ChatHistory(ctx context.Context, sessionID, chatID string, limit int) ([]engine.ChatMessage, error) {
	h, err := s.sessions.Handle(sessionID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return h.ChatMessages(ctx, chatID, limit)
}

func (s *Service) React(ctx context.Context, sessionID, chatID, messageID, emoji string) error {
	h, err := s.sessions.Handle(sessionID)
	if err != nil {
		return err
	}
	return h.React(ctx, chatID, messageID, emoji)
}
