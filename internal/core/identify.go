package core

import (
	"context"
	"regexp"
	"strings"

	"medassist/internal/db"
	"medassist/pkg"
)

// maxNameWords bounds raw text that is taken as a name when the classifier
// extracted neither a name nor an id.
const maxNameWords = 3

func (e *Engine) handleIdentify(ctx context.Context, dc *DialogueContext, text string, cl pkg.Classification) (string, error) {
	slots := cl.Slots
	if slots.PatientID == "" && slots.PatientName == "" {
		raw := strings.TrimRight(strings.TrimSpace(text), ".!")
		if n := len(strings.Fields(raw)); n == 0 || n > maxNameWords {
			return didNotCatchName, nil
		}
		slots.PatientName = raw
	}

	reply, ok, err := e.identifyFromSlots(ctx, dc, slots)
	if err != nil || !ok {
		return reply, err
	}
	if dc.Pending.Mode != ModeBooking {
		return reply, nil
	}

	// a name given mid-booking continues the flow in the same turn
	dc.Pending = mergePending(dc.Pending, strPtr(cl.Slots.TimePreference), strPtr(cl.Slots.DoctorPreference))
	next, err := e.advanceBooking(ctx, dc)
	if err != nil {
		return "", err
	}
	return reply + " " + next, nil
}

// reIDSlot matches id slots such as "42", "#42", "ID 42" or "id: #42".
var reIDSlot = regexp.MustCompile(`(?i)^(?:id\s*[:.]?\s*)?#?\s*(\d+)$`)

// identifyFromSlots resolves a patient id or name slot and binds the session
// to the result.  ok is false when the reply is a clarifying question.  Only
// a name slot may create a patient.
func (e *Engine) identifyFromSlots(ctx context.Context, dc *DialogueContext, slots pkg.Slots) (reply string, ok bool, err error) {
	if id := strings.TrimSpace(slots.PatientID); id != "" {
		return e.identifyByID(ctx, dc, id)
	}

	name := strings.TrimSpace(slots.PatientName)
	if name == "" {
		return didNotCatchName, false, nil
	}
	res, err := e.resolver.EnsureByName(ctx, name)
	if err != nil {
		return "", false, err
	}
	switch res.Status {
	case Resolved:
		dc.bindPatient(res.Patient)
		e.log.Debug().Str("session_id", dc.SessionID).Str("patient_id", res.Patient.ID).Msg("patient resolved")
		return gotIt(dc.PatientName), true, nil
	case Ambiguous:
		return ambiguousMessage(res.Candidates), false, nil
	default:
		return didNotCatchName, false, nil
	}
}

// identifyByID looks up an id slot without ever creating a record.  A slot
// that is not an id after normalization is searched as a name.
func (e *Engine) identifyByID(ctx context.Context, dc *DialogueContext, raw string) (string, bool, error) {
	query := strings.TrimSpace(strings.TrimPrefix(raw, "#"))
	if m := reIDSlot.FindStringSubmatch(raw); m != nil {
		query = m[1]
	}
	if query == "" {
		return unknownID, false, nil
	}
	res, err := e.resolver.Resolve(ctx, query)
	if err != nil {
		return "", false, err
	}
	switch res.Status {
	case Resolved:
		dc.bindPatient(res.Patient)
		if db.IsDigits(query) {
			return gotIt(""), true, nil
		}
		return gotIt(dc.PatientName), true, nil
	case Ambiguous:
		return ambiguousMessage(res.Candidates), false, nil
	default:
		return unknownID, false, nil
	}
}
