package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"medassist/internal/db"
	"medassist/internal/grounding"
	"medassist/internal/metrics"
	"medassist/pkg"
)

// ErrSessionFatal marks a turn that could not complete because the patient
// store failed.  The session must end after saying FatalMessage.
var ErrSessionFatal = errors.New("session cannot continue")

// IntentClassifier labels one utterance.  On failure it returns
// pkg.Unclassified() together with the cause.
type IntentClassifier interface {
	Name() string
	Classify(ctx context.Context, text string, s pkg.SessionSummary) (pkg.Classification, error)
}

type handlerFunc func(ctx context.Context, dc *DialogueContext, text string, cl pkg.Classification) (string, error)

// Engine routes each turn to the handler for its intent.  All session state
// lives in the DialogueContext passed to every call.
type Engine struct {
	repo       *db.Repository
	resolver   *Resolver
	grounder   *Grounder
	classifier IntentClassifier
	metrics    *metrics.Recorder
	log        zerolog.Logger

	handlers map[pkg.Intent]handlerFunc
}

// NewEngine wires the dialogue handlers.  classifier may be nil when turns are
// always fed through ProcessTurn; rec may be nil.
func NewEngine(repo *db.Repository, classifier IntentClassifier, gc grounding.Client, rec *metrics.Recorder, logger zerolog.Logger) *Engine {
	e := &Engine{
		repo:       repo,
		resolver:   NewResolver(repo),
		classifier: classifier,
		metrics:    rec,
		log:        logger.With().Str("component", "engine").Logger(),
	}
	e.grounder = NewGrounder(gc, repo, rec, logger)
	e.handlers = map[pkg.Intent]handlerFunc{
		pkg.IntentGreeting:            e.handleGreeting,
		pkg.IntentIdentify:            e.handleIdentify,
		pkg.IntentBookAppointment:     e.handleBook,
		pkg.IntentCancelAppointment:   e.handleCancel,
		pkg.IntentCheckAppointment:    e.handleCheck,
		pkg.IntentSymptoms:            e.handleSymptoms,
		pkg.IntentGeneralConversation: e.handleGeneral,
	}
	return e
}

// Resolver exposes the identity resolver backing the engine.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Respond classifies text and processes the turn.  A classifier failure is
// logged and the turn continues as general conversation.
func (e *Engine) Respond(ctx context.Context, dc *DialogueContext, text string) (string, error) {
	cl := pkg.Unclassified()
	if e.classifier != nil {
		var err error
		cl, err = e.classifier.Classify(ctx, text, dc.Summary())
		if err != nil {
			e.log.Warn().Err(err).
				Str("session_id", dc.SessionID).
				Str("classifier", e.classifier.Name()).
				Msg("classification unavailable, using general conversation")
			e.metrics.ClassifierFallback()
			cl = pkg.Unclassified()
		}
	}
	return e.ProcessTurn(ctx, dc, text, cl)
}

// ProcessTurn records the user turn, dispatches on cl.Intent and records the
// reply.  Store failures yield FatalMessage and an error wrapping
// ErrSessionFatal.
func (e *Engine) ProcessTurn(ctx context.Context, dc *DialogueContext, text string, cl pkg.Classification) (string, error) {
	dc.appendTurn(pkg.RoleUser, text)

	h, ok := e.handlers[cl.Intent]
	if !ok {
		cl.Intent = pkg.IntentGeneralConversation
		h = e.handlers[cl.Intent]
	}
	e.log.Debug().
		Str("session_id", dc.SessionID).
		Str("intent", string(cl.Intent)).
		Float64("confidence", cl.Confidence).
		Msg("dispatching turn")
	e.metrics.Turn(string(cl.Intent))

	reply, err := h(ctx, dc, text, cl)
	if err != nil {
		e.log.Error().Err(err).Str("session_id", dc.SessionID).Str("intent", string(cl.Intent)).Msg("turn failed")
		dc.appendTurn(pkg.RoleAssistant, FatalMessage)
		return FatalMessage, fmt.Errorf("%w: %w", ErrSessionFatal, err)
	}
	dc.appendTurn(pkg.RoleAssistant, reply)
	return reply, nil
}

// currentPatient reloads the resolved patient.  A record that disappeared
// from the store unbinds the session and reports false.
func (e *Engine) currentPatient(ctx context.Context, dc *DialogueContext) (pkg.Patient, bool, error) {
	if dc.PatientID == nil {
		return pkg.Patient{}, false, nil
	}
	p, err := e.repo.Get(ctx, *dc.PatientID)
	if errors.Is(err, db.ErrNotFound) {
		e.log.Warn().Str("session_id", dc.SessionID).Str("patient_id", *dc.PatientID).Msg("resolved patient no longer in store")
		dc.unbindPatient()
		return pkg.Patient{}, false, nil
	}
	if err != nil {
		return pkg.Patient{}, false, err
	}
	dc.bindPatient(p)
	return p, true, nil
}
