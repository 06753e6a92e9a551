package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"medassist/pkg"
)

var exitPhrases = map[string]bool{
	"exit":              true,
	"quit":              true,
	"bye":               true,
	"goodbye":           true,
	"stop":              true,
	"end conversation":  true,
	"that's all":        true,
	"thank you goodbye": true,
	"thanks goodbye":    true,
}

// IsExit reports whether text ends the session.  Case, commas and trailing
// punctuation are ignored.
func IsExit(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!? ")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "’", "'")
	return exitPhrases[strings.Join(strings.Fields(s), " ")]
}

// Input yields one user utterance per call and io.EOF when there are no more.
type Input interface {
	ReadLine(ctx context.Context) (string, error)
}

// Output delivers an assistant utterance to the user.
type Output interface {
	Say(ctx context.Context, text string) error
}

// Session runs the request/reply loop.  A turn, once accepted, runs to
// completion even if ctx is canceled meanwhile; cancellation ends the session
// before the next read.
type Session struct {
	engine *Engine
	in     Input
	out    Output
	log    zerolog.Logger
}

func NewSession(engine *Engine, in Input, out Output, logger zerolog.Logger) *Session {
	return &Session{
		engine: engine,
		in:     in,
		out:    out,
		log:    logger.With().Str("component", "session").Logger(),
	}
}

// Run returns nil when the user leaves and an error wrapping ErrSessionFatal
// when the patient store fails.
func (s *Session) Run(ctx context.Context) error {
	dc := NewDialogueContext()
	s.log.Info().Str("session_id", dc.SessionID).Msg("session started")
	defer func() {
		s.log.Info().Str("session_id", dc.SessionID).Int("turns", len(dc.History)).Msg("session ended")
	}()

	dc.appendTurn(pkg.RoleAssistant, WelcomeMessage)
	s.say(ctx, WelcomeMessage)

	for {
		if ctx.Err() != nil {
			s.say(context.WithoutCancel(ctx), FarewellMessage)
			return nil
		}
		text, err := s.in.ReadLine(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			s.say(context.WithoutCancel(ctx), FarewellMessage)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if IsExit(text) {
			dc.appendTurn(pkg.RoleUser, text)
			dc.appendTurn(pkg.RoleAssistant, FarewellMessage)
			s.say(ctx, FarewellMessage)
			return nil
		}

		turnCtx := context.WithoutCancel(ctx)
		reply, err := s.engine.Respond(turnCtx, dc, text)
		s.say(turnCtx, reply)
		if err != nil {
			return err
		}
	}
}

func (s *Session) say(ctx context.Context, text string) {
	if err := s.out.Say(ctx, text); err != nil {
		s.log.Warn().Err(err).Msg("could not deliver reply")
	}
}

type lineResult struct {
	text string
	err  error
}

// TextInput reads lines from a reader, printing a prompt before each read.
type TextInput struct {
	prompt string
	w      io.Writer
	lines  chan lineResult
}

// NewTextInput starts reading r in the background.  Pending reads are
// abandoned, not interrupted, when ReadLine's context ends.
func NewTextInput(r io.Reader, w io.Writer, prompt string) *TextInput {
	in := &TextInput{prompt: prompt, w: w, lines: make(chan lineResult)}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			in.lines <- lineResult{text: sc.Text()}
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		in.lines <- lineResult{err: err}
		close(in.lines)
	}()
	return in
}

func (in *TextInput) ReadLine(ctx context.Context) (string, error) {
	if in.prompt != "" && in.w != nil {
		fmt.Fprint(in.w, in.prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-in.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}

// TextOutput writes each utterance on its own line.
type TextOutput struct {
	w io.Writer
}

func NewTextOutput(w io.Writer) *TextOutput { return &TextOutput{w: w} }

func (o *TextOutput) Say(_ context.Context, text string) error {
	_, err := fmt.Fprintln(o.w, strings.TrimSpace(text))
	return err
}
