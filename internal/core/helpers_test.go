package core

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"medassist/internal/db"
	"medassist/internal/grounding"
	"medassist/pkg"
)

type fakeGrounding struct {
	calls int
	docs  map[string]grounding.Document
	err   error
}

func (f *fakeGrounding) Construe(_ context.Context, text string) (grounding.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[text], nil
}

func codesDoc(descriptions ...string) grounding.Document {
	codes := make([]any, 0, len(descriptions))
	for _, d := range descriptions {
		codes = append(codes, map[string]any{"description": d})
	}
	return grounding.Document{"codes": codes}
}

type fakeClassifier struct {
	byText map[string]pkg.Classification
	err    error
	seen   []pkg.SessionSummary
}

func (f *fakeClassifier) Name() string { return "fake" }

func (f *fakeClassifier) Classify(_ context.Context, text string, s pkg.SessionSummary) (pkg.Classification, error) {
	f.seen = append(f.seen, s)
	if f.err != nil {
		return pkg.Unclassified(), f.err
	}
	if cl, ok := f.byText[text]; ok {
		return cl, nil
	}
	return pkg.Unclassified(), nil
}

type testRig struct {
	store  *db.MemoryStore
	repo   *db.Repository
	ground *fakeGrounding
	engine *Engine
}

func newRig(t *testing.T, seed ...pkg.Patient) *testRig {
	t.Helper()
	store := db.NewMemoryStore(seed...)
	repo := db.NewRepository(store)
	g := &fakeGrounding{docs: map[string]grounding.Document{}}
	return &testRig{
		store:  store,
		repo:   repo,
		ground: g,
		engine: NewEngine(repo, nil, g, nil, zerolog.Nop()),
	}
}

func (r *testRig) turn(t *testing.T, dc *DialogueContext, text string, intent pkg.Intent, slots pkg.Slots) string {
	t.Helper()
	reply, err := r.engine.ProcessTurn(context.Background(), dc, text, pkg.Classification{Intent: intent, Confidence: 0.9, Slots: slots})
	if err != nil {
		t.Fatalf("ProcessTurn(%q): %v", text, err)
	}
	return reply
}

func (r *testRig) patient(t *testing.T, id string) pkg.Patient {
	t.Helper()
	p, err := r.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return p
}

// identified returns a context already bound to a freshly created patient.
func (r *testRig) identified(t *testing.T, name string) *DialogueContext {
	t.Helper()
	dc := NewDialogueContext()
	r.turn(t, dc, name, pkg.IntentIdentify, pkg.Slots{PatientName: name})
	if dc.PatientID == nil {
		t.Fatalf("expected %q to resolve", name)
	}
	return dc
}
