package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Recorder captures one utterance from the microphone.
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

// Player plays synthesized audio.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// CommandRecorder runs a shell command that writes WAV audio to stdout,
// e.g. "sox -d -t wav - silence 1 0.1 1% 1 2.0 1% trim 0 15".
type CommandRecorder struct {
	Command string
}

func (r CommandRecorder) Record(ctx context.Context) ([]byte, error) {
	if strings.TrimSpace(r.Command) == "" {
		return nil, ErrNotConfigured
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", r.Command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("record: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// CommandPlayer pipes audio into a shell command's stdin, e.g.
// "ffplay -autoexit -nodisp -loglevel quiet -".
type CommandPlayer struct {
	Command string
}

func (p CommandPlayer) Play(ctx context.Context, audio []byte) error {
	if strings.TrimSpace(p.Command) == "" {
		return ErrNotConfigured
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", p.Command)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// LineReader is the typed input used when listening gives up.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

// VoiceInput listens for an utterance, retrying a bounded number of times on
// silence before falling back to typed input for that turn.
type VoiceInput struct {
	recorder    Recorder
	transcriber Transcriber
	fallback    LineReader
	attempts    int
	w           io.Writer
	log         zerolog.Logger
}

func NewVoiceInput(rec Recorder, tr Transcriber, fallback LineReader, attempts int, w io.Writer, logger zerolog.Logger) *VoiceInput {
	if attempts < 1 {
		attempts = 1
	}
	return &VoiceInput{
		recorder:    rec,
		transcriber: tr,
		fallback:    fallback,
		attempts:    attempts,
		w:           w,
		log:         logger.With().Str("component", "voice_input").Logger(),
	}
}

func (v *VoiceInput) ReadLine(ctx context.Context) (string, error) {
	for i := 1; i <= v.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v.status("Listening... (speak now)")
		audio, err := v.recorder.Record(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			v.log.Warn().Err(err).Msg("recording failed")
			break
		}
		text, err := v.transcriber.Transcribe(ctx, audio)
		if err != nil {
			v.log.Warn().Err(err).Int("attempt", i).Msg("transcription failed")
			if errors.Is(err, ErrNotConfigured) {
				break
			}
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			v.status("You said: " + text)
			return text, nil
		}
		v.log.Debug().Int("attempt", i).Msg("no speech detected")
	}
	v.status("Falling back to text input...")
	return v.fallback.ReadLine(ctx)
}

func (v *VoiceInput) status(msg string) {
	if v.w != nil {
		fmt.Fprintln(v.w, msg)
	}
}

// VoiceOutput prints each utterance and then speaks it.  A speech failure is
// returned after the text has been printed.
type VoiceOutput struct {
	synth  Synthesizer
	player Player
	w      io.Writer
}

func NewVoiceOutput(synth Synthesizer, player Player, w io.Writer) *VoiceOutput {
	return &VoiceOutput{synth: synth, player: player, w: w}
}

func (o *VoiceOutput) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if _, err := fmt.Fprintln(o.w, text); err != nil {
		return err
	}
	audio, err := o.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	return o.player.Play(ctx, audio)
}
