package whatsmeow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/storage/model"
)

type handle struct {
	id     string
	client *whatsmeow.Client
	sink   engine.EventSink
	log    *zap.Logger
	repo   storage.ClientRepository
	msgs   storage.MessageRepository

	handlerID uint32
	qrCancel  context.CancelFunc
	closed    atomic.Bool

	mu        sync.Mutex
	lastState string
	hasState  bool
}

func (h *handle) SessionID() string { return h.id }

func (h *handle) Authenticated() bool {
	return h.client.IsLoggedIn()
}

func (h *handle) State() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastState, h.hasState
}

func (h *handle) setState(state string) {
	h.mu.Lock()
	h.lastState = state
	h.hasState = true
	h.mu.Unlock()
}

func (h *handle) emit(evt engine.Event) {
	if h.closed.Load() || h.sink == nil {
		return
	}
	h.sink(evt)
}

func (h *handle) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			if item.Code != "" {
				h.emit(engine.QREvent{Code: item.Code})
			}
		case "success":
			h.log.Info("pairing complete", zap.String("session_id", h.id))
			h.persistDeviceJID()
		default:
			// timeout, error states
			h.emit(engine.StateChangeEvent{State: "qr_" + item.Event})
		}
	}
}

func (h *handle) persistDeviceJID() {
	if h.client.Store == nil || h.client.Store.ID == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.repo.UpdateDeviceJID(ctx, h.id, h.client.Store.ID.String()); err != nil {
		h.log.Warn("failed to record device jid",
			zap.String("session_id", h.id), zap.Error(err))
	}
}

func (h *handle) route(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		h.onMessage(v)
	case *events.Connected:
		h.setState("connected")
		h.emit(engine.ReadyEvent{})
	case *events.PairSuccess:
		h.log.Info("device paired",
			zap.String("session_id", h.id),
			zap.String("jid", v.ID.String()),
		)
		h.persistDeviceJID()
	case *events.Disconnected:
		h.setState("disconnected")
		h.emit(engine.DisconnectedEvent{Reason: "connection closed"})
	case *events.LoggedOut:
		h.setState("logged_out")
		h.emit(engine.DisconnectedEvent{Reason: v.Reason.String()})
	case *events.ConnectFailure:
		h.setState("connect_failure")
		h.emit(engine.AuthFailureEvent{Message: v.Reason.String() + ": " + v.Message})
	case *events.PairError:
		h.setState("pair_error")
		h.emit(engine.AuthFailureEvent{Message: v.Error.Error()})
	case *events.StreamError:
		h.emit(engine.StateChangeEvent{State: "stream_error:" + v.Code})
	case *events.TemporaryBan:
		h.emit(engine.StateChangeEvent{State: "temporary_ban"})
	case *events.ClientOutdated:
		h.emit(engine.StateChangeEvent{State: "client_outdated"})
	}
}

func (h *handle) onMessage(v *events.Message) {
	msgType, body := classifyMessage(v.Message)

	stored := model.Message{
		ID:        v.Info.ID,
		SessionID: h.id,
		ChatJID:   v.Info.Chat.String(),
		SenderJID: v.Info.Sender.String(),
		FromMe:    v.Info.IsFromMe,
		Type:      msgType,
		Body:      body,
		Timestamp: v.Info.Timestamp,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.msgs.Create(ctx, stored); err != nil {
		h.log.Warn("failed to store inbound message",
			zap.String("session_id", h.id),
			zap.String("message_id", v.Info.ID),
			zap.Error(err),
		)
	}

	h.emit(engine.MessageEvent{
		ID:        v.Info.ID,
		ChatJID:   v.Info.Chat.String(),
		SenderJID: v.Info.Sender.String(),
		Body:      body,
		FromMe:    v.Info.IsFromMe,
		Timestamp: v.Info.Timestamp,
	})
}

func classifyMessage(msg *waE2E.Message) (string, string) {
	switch {
	case msg == nil:
		return "unknown", ""
	case msg.GetConversation() != "":
		return "text", msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		return "text", msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		return "image", msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return "video", msg.GetVideoMessage().GetCaption()
	case msg.GetAudioMessage() != nil:
		if msg.GetAudioMessage().GetPTT() {
			return "voice", ""
		}
		return "audio", ""
	case msg.GetDocumentMessage() != nil:
		return "document", msg.GetDocumentMessage().GetCaption()
	case msg.GetStickerMessage() != nil:
		return "sticker", ""
	case msg.GetReactionMessage() != nil:
		return "reaction", msg.GetReactionMessage().GetText()
	default:
		return "unknown", ""
	}
}

func (h *handle) SendText(ctx context.Context, to, body string) (string, error) {
	jid, err := parseRecipient(to)
	if err != nil {
		return "", err
	}

	resp, err := h.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("whatsmeow: send text: %w", err)
	}

	h.recordOutbound(ctx, resp.ID, jid, "text", body)
	return resp.ID, nil
}

func (h *handle) SendMedia(ctx context.Context, to string, media engine.Media) (string, error) {
	jid, err := parseRecipient(to)
	if err != nil {
		return "", err
	}

	mediaType, msgType := classifyUpload(media.MimeType)
	uploaded, err := h.client.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return "", fmt.Errorf("whatsmeow: upload media: %w", err)
	}

	msg := buildMediaMessage(media, uploaded, msgType)
	resp, err := h.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", fmt.Errorf("whatsmeow: send media: %w", err)
	}

	h.recordOutbound(ctx, resp.ID, jid, msgType, media.Caption)
	return resp.ID, nil
}

func (h *handle) SendVoice(ctx context.Context, to string, oggOpus []byte, seconds uint32) (string, error) {
	jid, err := parseRecipient(to)
	if err != nil {
		return "", err
	}

	uploaded, err := h.client.Upload(ctx, oggOpus, whatsmeow.MediaAudio)
	if err != nil {
		return "", fmt.Errorf("whatsmeow: upload voice note: %w", err)
	}

	audio := &waE2E.AudioMessage{
		URL:           &uploaded.URL,
		DirectPath:    &uploaded.DirectPath,
		MediaKey:      uploaded.MediaKey,
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    &uploaded.FileLength,
		Mimetype:      proto.String("audio/ogg; codecs=opus"),
		PTT:           proto.Bool(true),
		Seconds:       proto.Uint32(seconds),
	}

	resp, err := h.client.SendMessage(ctx, jid, &waE2E.Message{AudioMessage: audio})
	if err != nil {
		return "", fmt.Errorf("whatsmeow: send voice note: %w", err)
	}

	h.recordOutbound(ctx, resp.ID, jid, "voice", "")
	return resp.ID, nil
}

func (h *handle) React(ctx context.Context, chatID, messageID, emoji string) error {
	chat, err := types.ParseJID(chatID)
	if err != nil {
		return engine.ErrChatNotFound
	}

	// The reaction must name the original sender; fall back to the chat JID
	// when the message is not in the local store.
	sender := chat
	if msg, err := h.msgs.GetByID(ctx, h.id, messageID); err == nil {
		if msg.FromMe && h.client.Store.ID != nil {
			sender = *h.client.Store.ID
		} else if msg.SenderJID != "" {
			if parsed, perr := types.ParseJID(msg.SenderJID); perr == nil {
				sender = parsed
			}
		}
	}

	reaction := h.client.BuildReaction(chat, sender, types.MessageID(messageID), emoji)
	if _, err := h.client.SendMessage(ctx, chat, reaction); err != nil {
		return fmt.Errorf("whatsmeow: send reaction: %w", err)
	}
	return nil
}

func (h *handle) Contacts(ctx context.Context) ([]engine.Contact, error) {
	all, err := h.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: list contacts: %w", err)
	}

	contacts := make([]engine.Contact, 0, len(all))
	for jid, info := range all {
		contacts = append(contacts, engine.Contact{
			JID:      jid.String(),
			Name:     info.FullName,
			PushName: info.PushName,
		})
	}
	return contacts, nil
}

func (h *handle) ChatMessages(ctx context.Context, chatID string, limit int) ([]engine.ChatMessage, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return nil, engine.ErrChatNotFound
	}

	stored, err := h.msgs.ListByChat(ctx, h.id, jid.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: chat history: %w", err)
	}
	if len(stored) == 0 {
		// No local history; the chat only resolves if the engine knows it.
		settings, serr := h.client.Store.ChatSettings.GetChatSettings(ctx, jid)
		if serr != nil || !settings.Found {
			return nil, engine.ErrChatNotFound
		}
		return []engine.ChatMessage{}, nil
	}

	out := make([]engine.ChatMessage, 0, len(stored))
	for _, m := range stored {
		out = append(out, engine.ChatMessage{
			ID:        m.ID,
			ChatJID:   m.ChatJID,
			SenderJID: m.SenderJID,
			FromMe:    m.FromMe,
			Type:      m.Type,
			Body:      m.Body,
			Timestamp: m.Timestamp,
		})
	}
	return out, nil
}

func (h *handle) Logout(ctx context.Context) error {
	if err := h.client.Logout(ctx); err != nil {
		return fmt.Errorf("whatsmeow: logout: %w", err)
	}
	return nil
}

func (h *handle) Destroy() {
	h.closed.Store(true)
	h.client.RemoveEventHandler(h.handlerID)
	if h.qrCancel != nil {
		h.qrCancel()
	}
	h.client.Disconnect()
}

func (h *handle) recordOutbound(ctx context.Context, msgID string, chat types.JID, msgType, body string) {
	sender := ""
	if h.client.Store.ID != nil {
		sender = h.client.Store.ID.String()
	}
	err := h.msgs.Create(ctx, model.Message{
		ID:        msgID,
		SessionID: h.id,
		ChatJID:   chat.String(),
		SenderJID: sender,
		FromMe:    true,
		Type:      msgType,
		Body:      body,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Warn("failed to store outbound message",
			zap.String("session_id", h.id),
			zap.String("message_id", msgID),
			zap.Error(err),
		)
	}
}

func classifyUpload(mimeType string) (whatsmeow.MediaType, string) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return whatsmeow.MediaImage, "image"
	case strings.HasPrefix(mimeType, "video/"):
		return whatsmeow.MediaVideo, "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return whatsmeow.MediaAudio, "audio"
	default:
		return whatsmeow.MediaDocument, "document"
	}
}

func buildMediaMessage(media engine.Media, uploaded whatsmeow.UploadResponse, msgType string) *waE2E.Message {
	switch msgType {
	case "image":
		img := &waE2E.ImageMessage{
			URL:           &uploaded.URL,
			DirectPath:    &uploaded.DirectPath,
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    &uploaded.FileLength,
			Mimetype:      proto.String(media.MimeType),
		}
		if media.Caption != "" {
			img.Caption = proto.String(media.Caption)
		}
		return &waE2E.Message{ImageMessage: img}
	case "video":
		vid := &waE2E.VideoMessage{
			URL:           &uploaded.URL,
			DirectPath:    &uploaded.DirectPath,
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    &uploaded.FileLength,
			Mimetype:      proto.String(media.MimeType),
		}
		if media.Caption != "" {
			vid.Caption = proto.String(media.Caption)
		}
		return &waE2E.Message{VideoMessage: vid}
	case "audio":
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL:           &uploaded.URL,
			DirectPath:    &uploaded.DirectPath,
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    &uploaded.FileLength,
			Mimetype:      proto.String(media.MimeType),
		}}
	default:
		doc := &waE2E.DocumentMessage{
			URL:           &uploaded.URL,
			DirectPath:    &uploaded.DirectPath,
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    &uploaded.FileLength,
			Mimetype:      proto.String(media.MimeType),
			FileName:      proto.String(media.FileName),
		}
		if media.Caption != "" {
			doc.Caption = proto.String(media.Caption)
		}
		return &waE2E.Message{DocumentMessage: doc}
	}
}

// parseRecipient accepts a full JID or a bare phone number.
func parseRecipient(to string) (types.JID, error) {
	if strings.ContainsRune(to, '@') {
		jid, err := types.ParseJID(to)
		if err != nil {
			return types.JID{}, fmt.Errorf("whatsmeow: invalid recipient %q: %w", to, err)
		}
		return jid, nil
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, to)
	if digits == "" {
		return types.JID{}, fmt.Errorf("whatsmeow: invalid recipient %q", to)
	}
	return types.ParseJID(digits + "@s.whatsapp.net")
}
