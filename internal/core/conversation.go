package core

import (
	"context"
	"regexp"
	"strings"

	"medassist/pkg"
)

var (
	reEcho     = regexp.MustCompile(`(?i)\bwhat\s+did\s+i\s+(just\s+|last\s+)?say\b`)
	reConfused = regexp.MustCompile(`(?i)\b(what|huh|confused)\b|\?|don'?t understand`)
)

func (e *Engine) handleGreeting(_ context.Context, dc *DialogueContext, _ string, _ pkg.Classification) (string, error) {
	if dc.PatientID != nil {
		return greetingFor(dc.PatientName), nil
	}
	return greetings[dc.next(len(greetings))], nil
}

func (e *Engine) handleCancel(ctx context.Context, dc *DialogueContext, _ string, _ pkg.Classification) (string, error) {
	p, ok, err := e.currentPatient(ctx, dc)
	if err != nil {
		return "", err
	}
	if !ok {
		return askNameForCancel, nil
	}
	appt, changed := p.CancelLatest()
	if !changed {
		return noActiveAppointment, nil
	}
	if err := e.repo.Upsert(ctx, p); err != nil {
		return "", err
	}
	e.metrics.Cancellation()
	e.log.Info().Str("session_id", dc.SessionID).Str("patient_id", p.ID).Str("when", appt.When).Msg("appointment canceled")
	return canceledMessage(appt), nil
}

func (e *Engine) handleCheck(ctx context.Context, dc *DialogueContext, _ string, _ pkg.Classification) (string, error) {
	p, ok, err := e.currentPatient(ctx, dc)
	if err != nil {
		return "", err
	}
	if !ok {
		return askNameForCheck, nil
	}
	if p.NextAppointment == nil || *p.NextAppointment == "" {
		return noAppointmentOnFile, nil
	}
	return nextAppointmentMessage(*p.NextAppointment), nil
}

// handleGeneral answers small talk from session context: it can repeat the
// user's previous utterance, remind a confused patient of their next
// appointment, or rotate through generic prompts.
func (e *Engine) handleGeneral(ctx context.Context, dc *DialogueContext, text string, _ pkg.Classification) (string, error) {
	if reEcho.MatchString(text) {
		prev, ok := dc.PreviousUserUtterance()
		if !ok {
			return noPreviousUtterance, nil
		}
		return echoMessage(prev), nil
	}

	if reConfused.MatchString(strings.TrimSpace(text)) {
		p, ok, err := e.currentPatient(ctx, dc)
		if err != nil {
			return "", err
		}
		if ok && p.NextAppointment != nil {
			return reminderMessage(dc.PatientName, *p.NextAppointment), nil
		}
		return unclear, nil
	}

	prompts := anonymousPrompts
	if dc.PatientID != nil {
		prompts = knownPatientPrompts(dc.PatientName)
	}
	return prompts[dc.next(len(prompts))], nil
}
