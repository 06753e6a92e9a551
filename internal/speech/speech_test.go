package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		got, _ := io.ReadAll(f)
		if string(got) != "RIFF" {
			t.Errorf("unexpected upload %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "  book me for friday ", "language": "en"})
	}))
	defer srv.Close()

	text, err := NewHTTPTranscriber(srv.URL, time.Second).Transcribe(context.Background(), []byte("RIFF"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "book me for friday" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestHTTPSynthesizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		var req ttsRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "hello" {
			t.Errorf("unexpected text %q", req.Text)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	audio, err := NewHTTPSynthesizer(srv.URL, "key", "voice-1", time.Second).Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("unexpected audio %q", audio)
	}
}

func TestClientsNotConfigured(t *testing.T) {
	if _, err := NewHTTPTranscriber("", 0).Transcribe(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("transcriber: %v", err)
	}
	if _, err := NewHTTPSynthesizer("", "", "", 0).Synthesize(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("synthesizer: %v", err)
	}
}

func TestCommandRecorderAndPlayer(t *testing.T) {
	audio, err := CommandRecorder{Command: "printf wav-data"}.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if string(audio) != "wav-data" {
		t.Errorf("unexpected audio %q", audio)
	}
	if _, err := (CommandRecorder{Command: "exit 3"}).Record(context.Background()); err == nil {
		t.Error("expected failing command to error")
	}
	if err := (CommandPlayer{Command: "cat > /dev/null"}).Play(context.Background(), []byte("x")); err != nil {
		t.Errorf("Play: %v", err)
	}
}

type fakeRecorder struct {
	calls int
	err   error
}

func (f *fakeRecorder) Record(context.Context) ([]byte, error) {
	f.calls++
	return []byte("audio"), f.err
}

type fakeTranscriber struct {
	texts []string
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	if len(f.texts) == 0 {
		return "", nil
	}
	t := f.texts[0]
	f.texts = f.texts[1:]
	return t, nil
}

type fixedLine string

func (l fixedLine) ReadLine(context.Context) (string, error) { return string(l), nil }

func TestVoiceInput_RetriesSilence(t *testing.T) {
	rec := &fakeRecorder{}
	v := NewVoiceInput(rec, &fakeTranscriber{texts: []string{"", " ", "cancel my appointment"}}, fixedLine("typed"), 3, io.Discard, zerolog.Nop())

	got, err := v.ReadLine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "cancel my appointment" || rec.calls != 3 {
		t.Errorf("got %q after %d recordings", got, rec.calls)
	}
}

func TestVoiceInput_BoundedThenFallsBack(t *testing.T) {
	rec := &fakeRecorder{}
	var out bytes.Buffer
	v := NewVoiceInput(rec, &fakeTranscriber{}, fixedLine("typed"), 3, &out, zerolog.Nop())

	got, err := v.ReadLine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "typed" {
		t.Errorf("expected typed fallback, got %q", got)
	}
	if rec.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", rec.calls)
	}
	if !strings.Contains(out.String(), "Falling back to text input") {
		t.Errorf("fallback not announced: %q", out.String())
	}
}

func TestVoiceInput_RecorderFailureFallsBackImmediately(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("no input device")}
	v := NewVoiceInput(rec, &fakeTranscriber{}, fixedLine("typed"), 3, io.Discard, zerolog.Nop())

	got, _ := v.ReadLine(context.Background())
	if got != "typed" || rec.calls != 1 {
		t.Errorf("got %q after %d recordings", got, rec.calls)
	}
}

type fakeSynth struct{ err error }

func (f fakeSynth) Synthesize(context.Context, string) ([]byte, error) { return []byte("a"), f.err }

type fakePlayer struct{ played int }

func (f *fakePlayer) Play(context.Context, []byte) error {
	f.played++
	return nil
}

func TestVoiceOutput(t *testing.T) {
	var out bytes.Buffer
	p := &fakePlayer{}
	if err := NewVoiceOutput(fakeSynth{}, p, &out).Say(context.Background(), "Hi! "); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Hi!\n" || p.played != 1 {
		t.Errorf("printed %q, played %d", out.String(), p.played)
	}

	out.Reset()
	err := NewVoiceOutput(fakeSynth{err: errors.New("quota")}, p, &out).Say(context.Background(), "Bye")
	if err == nil {
		t.Error("expected synthesis error")
	}
	if out.String() != "Bye\n" {
		t.Errorf("text should be printed before speaking, got %q", out.String())
	}
}
