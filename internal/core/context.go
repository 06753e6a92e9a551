package core

import (
	"github.com/google/uuid"

	"medassist/pkg"
)

// Mode is the pending-booking mode.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeBooking Mode = "booking"
)

// PendingBooking is the slot-filling scratchpad of an appointment that has
// not been committed yet.
type PendingBooking struct {
	Mode   Mode
	When   *string
	Doctor *string
}

// Idle reports whether no booking is in progress.
func (p PendingBooking) Idle() bool {
	return p.Mode != ModeBooking && p.When == nil && p.Doctor == nil
}

// SymptomCache remembers the last grounded symptom text and its terms.
type SymptomCache struct {
	LastText  *string
	LastTerms []string
}

type commitKey struct {
	patientID string
	when      string
	doctor    string
}

// DialogueContext is the per-session state of one conversation.  It owns no
// persisted data; records live in the patient store and are referenced by id.
type DialogueContext struct {
	SessionID string

	// PatientID refers to the resolved patient, if any.  PatientName is the
	// name used when addressing them and follows the resolved record.
	PatientID   *string
	PatientName string

	Pending  PendingBooking
	Symptoms SymptomCache
	History  []pkg.Turn

	lastCommit *commitKey
	rotation   int
}

// NewDialogueContext starts an empty session.
func NewDialogueContext() *DialogueContext {
	return &DialogueContext{
		SessionID: uuid.NewString(),
		Pending:   PendingBooking{Mode: ModeNone},
	}
}

// BookingState is the position of the session in the booking flow.
type BookingState string

const (
	StateIdle            BookingState = "idle"
	StateAwaitingPatient BookingState = "awaiting_patient"
	StateAwaitingTime    BookingState = "awaiting_time"
)

// BookingState derives the booking flow state from the pending slots and the
// resolved patient.
func (dc *DialogueContext) BookingState() BookingState {
	switch {
	case dc.Pending.Mode != ModeBooking:
		return StateIdle
	case dc.PatientID == nil:
		return StateAwaitingPatient
	default:
		return StateAwaitingTime
	}
}

// Summary is what an intent classifier gets to see of the session.
func (dc *DialogueContext) Summary() pkg.SessionSummary {
	return pkg.SessionSummary{
		BookingMode:   dc.Pending.Mode == ModeBooking,
		PatientName:   dc.PatientName,
		LastAssistant: dc.LastAssistantUtterance(),
	}
}

// LastAssistantUtterance returns the most recent assistant turn.
func (dc *DialogueContext) LastAssistantUtterance() string {
	for i := len(dc.History) - 1; i >= 0; i-- {
		if dc.History[i].Role == pkg.RoleAssistant {
			return dc.History[i].Content
		}
	}
	return ""
}

// PreviousUserUtterance returns the user turn before the latest one.
func (dc *DialogueContext) PreviousUserUtterance() (string, bool) {
	seen := 0
	for i := len(dc.History) - 1; i >= 0; i-- {
		if dc.History[i].Role != pkg.RoleUser {
			continue
		}
		if seen++; seen == 2 {
			return dc.History[i].Content, true
		}
	}
	return "", false
}

func (dc *DialogueContext) appendTurn(role pkg.Role, content string) {
	dc.History = append(dc.History, pkg.Turn{Role: role, Content: content})
}

func (dc *DialogueContext) bindPatient(p pkg.Patient) {
	id := p.ID
	dc.PatientID = &id
	dc.PatientName = p.FirstName
	if dc.PatientName == "" {
		dc.PatientName = p.DisplayName()
	}
}

func (dc *DialogueContext) unbindPatient() {
	dc.PatientID = nil
	dc.PatientName = ""
}

func (dc *DialogueContext) resetPending() {
	dc.Pending = PendingBooking{Mode: ModeNone}
}

// next returns a rotating index in [0, n).
func (dc *DialogueContext) next(n int) int {
	i := dc.rotation % n
	dc.rotation++
	return i
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
