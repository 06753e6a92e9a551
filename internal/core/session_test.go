package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"medassist/internal/db"
	"medassist/pkg"
)

type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type recordingOutput struct {
	said []string
}

func (o *recordingOutput) Say(_ context.Context, text string) error {
	o.said = append(o.said, text)
	return nil
}

func newTestSession(r *testRig, cls IntentClassifier, lines ...string) (*Session, *recordingOutput) {
	out := &recordingOutput{}
	e := NewEngine(r.repo, cls, r.ground, nil, zerolog.Nop())
	return NewSession(e, &scriptedInput{lines: lines}, out, zerolog.Nop()), out
}

func TestIsExit(t *testing.T) {
	tests := map[string]bool{
		"exit":                true,
		"Bye!":                true,
		"  GOODBYE. ":         true,
		"Thank you, goodbye.": true,
		"that's all":          true,
		"That’s all":          true,
		"end   conversation":  true,
		"stop the pain":       false,
		"bye bye now":         false,
		"":                    false,
	}
	for in, want := range tests {
		if got := IsExit(in); got != want {
			t.Errorf("IsExit(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSession_ExitPhraseEnds(t *testing.T) {
	r := newRig(t)
	s, out := newTestSession(r, &fakeClassifier{}, "hello", "", "Goodbye!", "never read")

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{WelcomeMessage, anonymousPrompts[0], FarewellMessage}
	if strings.Join(out.said, "|") != strings.Join(want, "|") {
		t.Errorf("said %q, want %q", out.said, want)
	}
}

func TestSession_EndOfInputSaysFarewell(t *testing.T) {
	r := newRig(t)
	s, out := newTestSession(r, &fakeClassifier{})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.said) != 2 || out.said[1] != FarewellMessage {
		t.Errorf("unexpected output %q", out.said)
	}
}

func TestSession_CanceledContextEnds(t *testing.T) {
	r := newRig(t)
	s, out := newTestSession(r, &fakeClassifier{}, "hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.said) != 2 || out.said[1] != FarewellMessage {
		t.Errorf("unexpected output %q", out.said)
	}
}

func TestSession_StoreFailureEndsSession(t *testing.T) {
	r := newRig(t)
	r.store.FailLoads(&db.ParseError{Path: "patients.json", Err: errors.New("unexpected end of JSON input")})
	cls := &fakeClassifier{byText: map[string]pkg.Classification{
		"Drake": {Intent: pkg.IntentIdentify, Slots: pkg.Slots{PatientName: "Drake"}},
	}}
	s, out := newTestSession(r, cls, "Drake", "hello")

	err := s.Run(context.Background())
	if !errors.Is(err, ErrSessionFatal) {
		t.Fatalf("expected ErrSessionFatal, got %v", err)
	}
	if len(out.said) != 2 || out.said[1] != FatalMessage {
		t.Errorf("unexpected output %q", out.said)
	}
}

func TestSession_FullBookingConversation(t *testing.T) {
	r := newRig(t)
	cls := &fakeClassifier{byText: map[string]pkg.Classification{
		"I need an appointment Friday 10am": {Intent: pkg.IntentBookAppointment, Slots: pkg.Slots{TimePreference: "Friday 10am"}},
		"Drake":                             {Intent: pkg.IntentIdentify, Slots: pkg.Slots{PatientName: "Drake"}},
		"when is my next appointment":       {Intent: pkg.IntentCheckAppointment},
	}}
	s, out := newTestSession(r, cls, "I need an appointment Friday 10am", "Drake", "when is my next appointment", "bye")
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.said[len(out.said)-2]; got != "You've got one Friday 10am." {
		t.Errorf("unexpected check reply %q", got)
	}
}

func TestTextInput(t *testing.T) {
	var prompts bytes.Buffer
	in := NewTextInput(strings.NewReader("hello\nbye\n"), &prompts, "> ")
	ctx := context.Background()

	for _, want := range []string{"hello", "bye"} {
		got, err := in.ReadLine(ctx)
		if err != nil || got != want {
			t.Fatalf("ReadLine() = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := in.ReadLine(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if prompts.String() != "> > > " {
		t.Errorf("unexpected prompts %q", prompts.String())
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextOutput(&buf).Say(context.Background(), "  hi there \n"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hi there\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
