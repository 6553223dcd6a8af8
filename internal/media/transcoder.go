// Package media converts inbound audio payloads into the voice-note format
// the messaging engine expects: ogg/opus, mono, 48 kHz, voip profile.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidInput marks a payload that is empty or not valid base64.
var ErrInvalidInput = errors.New("media: invalid audio payload")

// ErrConversion marks a transcoding engine failure.
var ErrConversion = errors.New("media: audio conversion failed")

// Input-format hints passed to the engine for container formats it cannot
// always sniff from a pipe. Unknown types go in unhinted.
var formatHints = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "mp4",
	"audio/aac":   "aac",
	"audio/ogg":   "ogg",
	"audio/opus":  "ogg",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/webm":  "webm",
	"audio/flac":  "flac",
	"audio/amr":   "amr",
	"audio/3gpp":  "3gp",
}

// Runner executes the conversion engine. Broken out so tests can fake it.
type Runner interface {
	Run(ctx context.Context, stdin []byte, args []string) ([]byte, error)
}

type execRunner struct {
	bin string
}

func (r *execRunner) Run(ctx context.Context, stdin []byte, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%w: %s", err, detail)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

type Transcoder struct {
	runner Runner
	log    *zap.Logger
}

// NewTranscoder uses the ffmpeg binary at bin (PATH lookup applies).
func NewTranscoder(bin string, log *zap.Logger) *Transcoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Transcoder{runner: &execRunner{bin: bin}, log: log}
}

func NewTranscoderWithRunner(runner Runner, log *zap.Logger) *Transcoder {
	return &Transcoder{runner: runner, log: log}
}

// ToVoiceNote decodes the base64 payload (a data-URL prefix is tolerated)
// and converts it to ogg/opus voice-note audio.
func (t *Transcoder) ToVoiceNote(ctx context.Context, mimeType, data string) ([]byte, error) {
	raw, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if hint, ok := formatHint(mimeType); ok {
		args = append(args, "-f", hint)
	}
	args = append(args,
		"-i", "pipe:0",
		"-vn",
		"-ac", "1",
		"-ar", "48000",
		"-c:a", "libopus",
		"-b:a", "24k",
		"-application", "voip",
		"-avoid_negative_ts", "make_zero",
		"-f", "ogg",
		"pipe:1",
	)

	out, err := t.runner.Run(ctx, raw, args)
	if err != nil {
		t.log.Warn("audio conversion failed",
			zap.String("mime_type", mimeType),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: engine produced no output", ErrConversion)
	}
	return out, nil
}

// DecodePayload strips an optional data-URL prefix and base64-decodes the
// rest. Empty results are rejected.
func DecodePayload(data string) ([]byte, error) {
	payload := data
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, "base64,"); idx >= 0 {
			payload = payload[idx+len("base64,"):]
		}
	}
	payload = strings.TrimSpace(payload)

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	return raw, nil
}

func formatHint(mimeType string) (string, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	hint, ok := formatHints[mt]
	return hint, ok
}
