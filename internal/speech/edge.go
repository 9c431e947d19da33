// Package speech converts reply text to audio. Synthesis is best effort,
// callers absorb failures and return the text reply regardless.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// EdgeTTS shells out to the edge-tts CLI, which writes an mp3 to a temp
// file. The context deadline kills the subprocess on timeout.
type EdgeTTS struct {
	Command string
	Voice   string
	Rate    string
}

func NewEdgeTTS(command, voice, rate string) *EdgeTTS {
	if command == "" {
		command = "edge-tts"
	}
	if voice == "" {
		voice = "tr-TR-EmelNeural"
	}
	if rate == "" {
		rate = "+5%"
	}
	return &EdgeTTS{Command: command, Voice: voice, Rate: rate}
}

func (e *EdgeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speech: empty text")
	}

	tmp, err := os.CreateTemp("", "tts-*.mp3")
	if err != nil {
		return nil, err
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	cmd := exec.CommandContext(ctx, e.Command,
		"--text", text,
		"--voice", e.Voice,
		"--rate", e.Rate,
		"--write-media", name,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("speech: %s: %w (%s)", e.Command, err, msg)
		}
		return nil, fmt.Errorf("speech: %s: %w", e.Command, err)
	}

	audio, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return audio, nil
}
