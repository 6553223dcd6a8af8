package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/media"
	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/storage/model"
)

type stubHandle struct {
	sentText   []string
	sentMedia  []engine.Media
	sentVoice  [][]byte
	voiceSecs  []uint32
	reactions  []string
	historyReq []int
	historyErr error
	contacts   []engine.Contact
	history    []engine.ChatMessage
}

func (h *stubHandle) SessionID() string     { return "s1" }
func (h *stubHandle) Authenticated() bool   { return true }
func (h *stubHandle) State() (string, bool) { return "connected", true }

func (h *stubHandle) SendText(_ context.Context, to, body string) (string, error) {
	h.sentText = append(h.sentText, to+":"+body)
	return "text-id", nil
}

func (h *stubHandle) SendMedia(_ context.Context, _ string, m engine.Media) (string, error) {
	h.sentMedia = append(h.sentMedia, m)
	return "media-id", nil
}

func (h *stubHandle) SendVoice(_ context.Context, _ string, ogg []byte, seconds uint32) (string, error) {
	h.sentVoice = append(h.sentVoice, ogg)
	h.voiceSecs = append(h.voiceSecs, seconds)
	return "voice-id", nil
}

func (h *stubHandle) React(_ context.Context, chatID, messageID, emoji string) error {
	h.reactions = append(h.reactions, fmt.Sprintf("%s/%s/%s", chatID, messageID, emoji))
	return nil
}

func (h *stubHandle) Contacts(context.Context) ([]engine.Contact, error) {
	return h.contacts, nil
}

func (h *stubHandle) ChatMessages(_ context.Context, _ string, limit int) ([]engine.ChatMessage, error) {
	h.historyReq = append(h.historyReq, limit)
	if h.historyErr != nil {
		return nil, h.historyErr
	}
	return h.history, nil
}

func (h *stubHandle) Logout(context.Context) error { return nil }
func (h *stubHandle) Destroy()                     {}

type stubDirectory struct {
	handle engine.Handle
	state  model.SessionState
	err    error
}

func (d *stubDirectory) Handle(string) (engine.Handle, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.handle, nil
}

func (d *stubDirectory) Status(string) (model.SessionState, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.state, nil
}

type stubRunner struct {
	out []byte
	err error
}

func (r *stubRunner) Run(context.Context, []byte, []string) ([]byte, error) {
	return r.out, r.err
}

func newService(h *stubHandle, state model.SessionState, runner media.Runner) *Service {
	if runner == nil {
		runner = &stubRunner{out: []byte("ogg")}
	}
	dir := &stubDirectory{handle: h, state: state}
	return NewService(dir, media.NewTranscoderWithRunner(runner, zap.NewNop()), zap.NewNop())
}

func encode(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestSendTextReady(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionReady, nil)

	id, err := svc.SendText(context.Background(), "s1", "5511999999999", "hello")
	require.NoError(t, err)
	require.Equal(t, "text-id", id)
	require.Equal(t, []string{"5511999999999:hello"}, h.sentText)
}

func TestSendTextRejectedWhileQRPending(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionQRPending, nil)

	_, err := svc.SendText(context.Background(), "s1", "5511999999999", "hello")
	require.ErrorIs(t, err, ErrNotReady)
	require.Empty(t, h.sentText)
}

func TestSendTextUnknownSession(t *testing.T) {
	dir := &stubDirectory{err: storage.ErrNotFound}
	svc := NewService(dir, media.NewTranscoderWithRunner(&stubRunner{}, zap.NewNop()), zap.NewNop())

	_, err := svc.SendText(context.Background(), "ghost", "x", "y")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSendMediaNotGatedOnReadiness(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionQRPending, nil)

	id, err := svc.SendMedia(context.Background(), "s1", "5511999999999", "image/png", encode("png-bytes"), "a caption", "pic.png")
	require.NoError(t, err)
	require.Equal(t, "media-id", id)
	require.Len(t, h.sentMedia, 1)
	require.Equal(t, "image/png", h.sentMedia[0].MimeType)
	require.Equal(t, []byte("png-bytes"), h.sentMedia[0].Data)
	require.Equal(t, "a caption", h.sentMedia[0].Caption)
	require.Equal(t, "pic.png", h.sentMedia[0].FileName)
}

func TestSendMediaInvalidPayload(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionReady, nil)

	_, err := svc.SendMedia(context.Background(), "s1", "x", "image/png", "%%%", "", "")
	require.ErrorIs(t, err, media.ErrInvalidInput)
	require.Empty(t, h.sentMedia)
}

func TestSendVoiceNoteTranscodesFirst(t *testing.T) {
	ogg := make([]byte, 6000) // 6000 bytes at 24 kbps -> 2 seconds
	h := &stubHandle{}
	svc := newService(h, model.SessionReady, &stubRunner{out: ogg})

	id, err := svc.SendVoiceNote(context.Background(), "s1", "5511999999999", "audio/mpeg", encode("mp3"))
	require.NoError(t, err)
	require.Equal(t, "voice-id", id)
	require.Len(t, h.sentVoice, 1)
	require.Equal(t, ogg, h.sentVoice[0])
	require.Equal(t, []uint32{2}, h.voiceSecs)
}

func TestSendVoiceNoteConversionFailureStopsSend(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionReady, &stubRunner{err: errors.New("boom")})

	_, err := svc.SendVoiceNote(context.Background(), "s1", "x", "audio/mpeg", encode("mp3"))
	require.ErrorIs(t, err, media.ErrConversion)
	require.Empty(t, h.sentVoice)
}

func TestSendVoiceNoteInvalidPayload(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionReady, nil)

	_, err := svc.SendVoiceNote(context.Background(), "s1", "x", "audio/mpeg", "")
	require.ErrorIs(t, err, media.ErrInvalidInput)
	require.Empty(t, h.sentVoice)
}

func TestChatHistoryDefaultLimit(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionReady, nil)

	_, err := svc.ChatHistory(context.Background(), "s1", "123@s.whatsapp.net", 0)
	require.NoError(t, err)
	_, err = svc.ChatHistory(context.Background(), "s1", "123@s.whatsapp.net", -7)
	require.NoError(t, err)
	_, err = svc.ChatHistory(context.Background(), "s1", "123@s.whatsapp.net", 10)
	require.NoError(t, err)

	require.Equal(t, []int{50, 50, 10}, h.historyReq)
}

func TestChatHistoryUnknownChat(t *testing.T) {
	h := &stubHandle{historyErr: engine.ErrChatNotFound}
	svc := newService(h, model.SessionReady, nil)

	_, err := svc.ChatHistory(context.Background(), "s1", "not-a-chat", 25)
	require.ErrorIs(t, err, engine.ErrChatNotFound)
}

func TestReactPassesThrough(t *testing.T) {
	h := &stubHandle{}
	svc := newService(h, model.SessionReady, nil)

	err := svc.React(context.Background(), "s1", "123@s.whatsapp.net", "m1", "❤")
	require.NoError(t, err)
	require.Len(t, h.reactions, 1)
}

func TestContacts(t *testing.T) {
	h := &stubHandle{contacts: []engine.Contact{{JID: "123@s.whatsapp.net", Name: "Alice"}}}
	svc := newService(h, model.SessionReady, nil)

	got, err := svc.Contacts(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, h.contacts, got)
}
