package pkg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AppointmentStatus describes whether an appointment still stands.  Canceled
// appointments stay in the patient's list; only their status changes.
type AppointmentStatus string

const (
	StatusBooked   AppointmentStatus = "booked"
	StatusCanceled AppointmentStatus = "canceled"
)

// Appointment is a single booking.  When is stored verbatim as the patient
// said it ("Friday 10am") and is never parsed.
type Appointment struct {
	When   string            `json:"when"`
	Doctor *string           `json:"doctor"`
	Status AppointmentStatus `json:"status"`
}

// Patient is the record persisted in the patient store.  The JSON field
// names are consumed by the read-only reporting service and must not change.
// Fields written by other tools sharing the file are kept in Extra and
// written back untouched.
type Patient struct {
	ID              string
	FirstName       string
	LastName        string
	Conditions      []string
	Appointments    []Appointment
	NextAppointment *string
	Extra           map[string]json.RawMessage
}

var patientKeys = []string{"id", "firstName", "lastName", "conditions", "appointments", "nextAppointment"}

// FullName returns "First Last" with surrounding space removed.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// DisplayName is the name used in replies; it falls back to "#id".
func (p Patient) DisplayName() string {
	if n := p.FullName(); n != "" {
		return n
	}
	return "#" + p.ID
}

// AddCondition appends term unless an entry equal to it ignoring case is
// already present.  It reports whether the list changed.
func (p *Patient) AddCondition(term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	for _, c := range p.Conditions {
		if strings.EqualFold(c, term) {
			return false
		}
	}
	p.Conditions = append(p.Conditions, term)
	return true
}

// Book appends a booked appointment and points NextAppointment at it.
func (p *Patient) Book(when string, doctor *string) Appointment {
	appt := Appointment{When: when, Status: StatusBooked}
	if doctor != nil && *doctor != "" {
		d := *doctor
		appt.Doctor = &d
	}
	p.Appointments = append(p.Appointments, appt)
	w := when
	p.NextAppointment = &w
	return appt
}

// CancelLatest marks the last appointment canceled and clears
// NextAppointment.  Earlier appointments are never touched.  It returns false
// without mutating anything when there is no appointment or the latest one is
// already canceled.
func (p *Patient) CancelLatest() (Appointment, bool) {
	if len(p.Appointments) == 0 {
		return Appointment{}, false
	}
	last := &p.Appointments[len(p.Appointments)-1]
	if last.Status == StatusCanceled {
		return Appointment{}, false
	}
	last.Status = StatusCanceled
	p.NextAppointment = nil
	return *last, true
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's slices.
func (p Patient) Clone() Patient {
	out := p
	if p.Conditions != nil {
		out.Conditions = append([]string{}, p.Conditions...)
	}
	if p.Appointments != nil {
		out.Appointments = make([]Appointment, len(p.Appointments))
		for i, a := range p.Appointments {
			if a.Doctor != nil {
				d := *a.Doctor
				a.Doctor = &d
			}
			out.Appointments[i] = a
		}
	}
	if p.NextAppointment != nil {
		n := *p.NextAppointment
		out.NextAppointment = &n
	}
	if p.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = append(json.RawMessage{}, v...)
		}
	}
	return out
}

// MarshalJSON writes the known fields in a fixed order followed by any
// preserved foreign fields sorted by key.  Empty lists are written as [].
func (p Patient) MarshalJSON() ([]byte, error) {
	conditions := p.Conditions
	if conditions == nil {
		conditions = []string{}
	}
	appointments := p.Appointments
	if appointments == nil {
		appointments = []Appointment{}
	}
	values := []any{p.ID, p.FirstName, p.LastName, conditions, appointments, p.NextAppointment}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range patientKeys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, key, values[i]); err != nil {
			return nil, err
		}
	}
	extraKeys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		buf.WriteByte(',')
		if err := writeMember(&buf, k, p.Extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := marshalNoEscape(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON accepts ids written as strings or numbers and keeps unknown
// members in Extra.  A null record is an error.
func (p *Patient) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("patient record is null")
	}
	var out Patient
	if v, ok := raw["id"]; ok {
		id, err := decodeID(v)
		if err != nil {
			return err
		}
		out.ID = id
	}
	fields := []struct {
		key string
		dst any
	}{
		{"firstName", &out.FirstName},
		{"lastName", &out.LastName},
		{"conditions", &out.Conditions},
		{"appointments", &out.Appointments},
		{"nextAppointment", &out.NextAppointment},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("patient %q field %s: %w", out.ID, f.key, err)
		}
	}
	for _, k := range patientKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*p = out
	return nil
}

func decodeID(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("patient id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", fmt.Errorf("patient id %s is not an integer", n)
	}
	return n.String(), nil
}

// Intent is the closed set of things a user turn can ask for.
type Intent string

const (
	IntentGreeting            Intent = "greeting"
	IntentIdentify            Intent = "identify"
	IntentBookAppointment     Intent = "book_appointment"
	IntentCancelAppointment   Intent = "cancel_appointment"
	IntentCheckAppointment    Intent = "check_appointment"
	IntentSymptoms            Intent = "symptoms"
	IntentGeneralConversation Intent = "general_conversation"
)

// Intents lists every Intent.  The turn router requires a handler for each.
var Intents = []Intent{
	IntentGreeting,
	IntentIdentify,
	IntentBookAppointment,
	IntentCancelAppointment,
	IntentCheckAppointment,
	IntentSymptoms,
	IntentGeneralConversation,
}

// ParseIntent maps a classifier label to an Intent.  Anything unknown is
// general conversation.
func ParseIntent(s string) Intent {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, in := range Intents {
		if string(in) == s {
			return in
		}
	}
	return IntentGeneralConversation
}

// Slots are the optional values a classifier extracted from one utterance.
type Slots struct {
	PatientName       string `json:"patient_name,omitempty"`
	PatientID         string `json:"patient_id,omitempty"`
	TimePreference    string `json:"time_preference,omitempty"`
	DoctorPreference  string `json:"doctor_preference,omitempty"`
	SymptomsDescribed string `json:"symptoms_described,omitempty"`
}

// Classification is the per-turn output of an intent classifier.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Slots      Slots   `json:"extracted_info"`
}

// LowConfidence is reported when no usable classification was produced.
const LowConfidence = 0.3

// Unclassified is the fallback used whenever a classifier has nothing usable.
func Unclassified() Classification {
	return Classification{Intent: IntentGeneralConversation, Confidence: LowConfidence}
}

// Role describes who authored a turn in the dialogue history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the dialogue history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionSummary is the slice of dialogue state a classifier may condition
// on.
type SessionSummary struct {
	BookingMode   bool
	PatientName   string
	LastAssistant string
}
