package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"medassist/internal/db"
	"medassist/internal/grounding"
	"medassist/internal/metrics"
	"medassist/pkg"
)

// Grounder maps symptom text to standardized terms through an external
// service, memoizing the last lookup of the session.
type Grounder struct {
	client  grounding.Client
	repo    *db.Repository
	metrics *metrics.Recorder
	log     zerolog.Logger
}

func NewGrounder(client grounding.Client, repo *db.Repository, rec *metrics.Recorder, logger zerolog.Logger) *Grounder {
	return &Grounder{
		client:  client,
		repo:    repo,
		metrics: rec,
		log:     logger.With().Str("component", "grounder").Logger(),
	}
}

// Ground returns at most grounding.MaxTerms terms for text.  Identical text
// is answered from the session cache without calling the service.  A failed
// lookup caches an empty result for text.  On a fresh lookup the first term
// is added to the resolved patient's conditions; only store errors are
// returned.
func (g *Grounder) Ground(ctx context.Context, dc *DialogueContext, text string) ([]string, error) {
	if c := dc.Symptoms; c.LastText != nil && *c.LastText == text {
		g.metrics.Grounding(metrics.GroundingHit)
		return c.LastTerms, nil
	}

	t := text
	terms, err := g.lookup(ctx, text)
	if err != nil {
		ev := g.log.Warn()
		if errors.Is(err, grounding.ErrNotConfigured) {
			ev = g.log.Debug()
		}
		ev.Err(err).Str("session_id", dc.SessionID).Msg("grounding failed, continuing without terms")
		g.metrics.Grounding(metrics.GroundingError)
		dc.Symptoms = SymptomCache{LastText: &t, LastTerms: []string{}}
		return []string{}, nil
	}
	g.metrics.Grounding(metrics.GroundingMiss)

	dc.Symptoms = SymptomCache{LastText: &t, LastTerms: terms}

	if len(terms) > 0 && dc.PatientID != nil {
		if err := g.recordCondition(ctx, *dc.PatientID, terms[0]); err != nil {
			return terms, err
		}
	}
	return terms, nil
}

func (g *Grounder) lookup(ctx context.Context, text string) ([]string, error) {
	if g.client == nil {
		return nil, grounding.ErrNotConfigured
	}
	doc, err := g.client.Construe(ctx, text)
	if err != nil {
		return nil, err
	}
	return grounding.ExtractTerms(doc), nil
}

func (g *Grounder) recordCondition(ctx context.Context, patientID, term string) error {
	p, err := g.repo.Get(ctx, patientID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !p.AddCondition(term) {
		return nil
	}
	return g.repo.Upsert(ctx, p)
}

// handleSymptoms grounds the reported symptoms and then always offers a
// booking by entering booking mode with empty slots.
func (e *Engine) handleSymptoms(ctx context.Context, dc *DialogueContext, text string, cl pkg.Classification) (string, error) {
	described := strings.TrimSpace(cl.Slots.SymptomsDescribed)
	if described == "" {
		described = strings.TrimSpace(text)
	}
	terms, err := e.grounder.Ground(ctx, dc, described)
	if err != nil {
		return "", err
	}
	dc.Pending = PendingBooking{Mode: ModeBooking}
	return symptomReply(terms), nil
}
