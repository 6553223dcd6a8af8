package media

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	out      []byte
	err      error
	gotStdin []byte
	gotArgs  []string
}

func (r *fakeRunner) Run(_ context.Context, stdin []byte, args []string) ([]byte, error) {
	r.gotStdin = stdin
	r.gotArgs = args
	return r.out, r.err
}

func encode(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestDecodePayloadEmpty(t *testing.T) {
	_, err := DecodePayload("")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodePayloadBadBase64(t *testing.T) {
	_, err := DecodePayload("!!!not-base64!!!")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodePayloadStripsDataURLPrefix(t *testing.T) {
	raw, err := DecodePayload("data:audio/mpeg;base64," + encode("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), raw)
}

func TestDecodePayloadPlainBase64(t *testing.T) {
	raw, err := DecodePayload(encode("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), raw)
}

func TestToVoiceNoteInvalidPayloadSkipsEngine(t *testing.T) {
	runner := &fakeRunner{out: []byte("ogg")}
	tc := NewTranscoderWithRunner(runner, zap.NewNop())

	_, err := tc.ToVoiceNote(context.Background(), "audio/mpeg", "%%%")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Nil(t, runner.gotArgs)
}

func TestToVoiceNoteKnownMimeAddsFormatHint(t *testing.T) {
	runner := &fakeRunner{out: []byte("ogg-bytes")}
	tc := NewTranscoderWithRunner(runner, zap.NewNop())

	out, err := tc.ToVoiceNote(context.Background(), "audio/mpeg", encode("mp3-bytes"))
	require.NoError(t, err)
	require.Equal(t, []byte("ogg-bytes"), out)
	require.Equal(t, []byte("mp3-bytes"), runner.gotStdin)

	hinted := false
	for i, arg := range runner.gotArgs {
		if arg == "-f" && i+1 < len(runner.gotArgs) && runner.gotArgs[i+1] == "mp3" {
			hinted = true
		}
	}
	require.True(t, hinted, "expected -f mp3 hint in args: %v", runner.gotArgs)
}

func TestToVoiceNoteMimeParametersIgnored(t *testing.T) {
	runner := &fakeRunner{out: []byte("ogg")}
	tc := NewTranscoderWithRunner(runner, zap.NewNop())

	_, err := tc.ToVoiceNote(context.Background(), "Audio/OGG; codecs=opus", encode("x"))
	require.NoError(t, err)

	hinted := false
	for i, arg := range runner.gotArgs {
		if arg == "-f" && runner.gotArgs[i+1] == "ogg" && runner.gotArgs[i+2] == "-i" {
			hinted = true
		}
	}
	require.True(t, hinted, "expected -f ogg hint in args: %v", runner.gotArgs)
}

func TestToVoiceNoteUnknownMimeHasNoHint(t *testing.T) {
	runner := &fakeRunner{out: []byte("ogg")}
	tc := NewTranscoderWithRunner(runner, zap.NewNop())

	_, err := tc.ToVoiceNote(context.Background(), "application/octet-stream", encode("x"))
	require.NoError(t, err)

	// The only -f flag should be the ogg output selector.
	count := 0
	for _, arg := range runner.gotArgs {
		if arg == "-f" {
			count++
		}
	}
	require.Equal(t, 1, count, "args: %v", runner.gotArgs)
}

func TestToVoiceNoteEngineFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1: invalid data")}
	tc := NewTranscoderWithRunner(runner, zap.NewNop())

	_, err := tc.ToVoiceNote(context.Background(), "audio/mpeg", encode("x"))
	require.ErrorIs(t, err, ErrConversion)
}

func TestToVoiceNoteEmptyOutput(t *testing.T) {
	runner := &fakeRunner{out: nil}
	tc := NewTranscoderWithRunner(runner, zap.NewNop())

	_, err := tc.ToVoiceNote(context.Background(), "audio/mpeg", encode("x"))
	require.ErrorIs(t, err, ErrConversion)
}
