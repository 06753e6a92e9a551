package intent

import (
	"context"
	"regexp"
	"strings"

	"medassist/pkg"
)

var (
	reGreeting = regexp.MustCompile(`(?i)\b(hi|hello|hey)\b`)
	reBook     = regexp.MustCompile(`(?i)\b(book|schedule|appointment|appt)\b`)
	reCancel   = regexp.MustCompile(`(?i)\b(cancel|remove)\b.*\b(appointment|appt)\b`)
	reName     = regexp.MustCompile(`(?i)\b(i am|i'm|my name is)\s+(.+)`)
	reID       = regexp.MustCompile(`#(\d+)`)
	reTime     = regexp.MustCompile(`(?i)\b(?:on|at|when)[:\s]*([0-9:\-/\sA-Za-z]+)`)
	reDoctor   = regexp.MustCompile(`(?i)\bwith\s+(Dr\.?\s*\w+|\w+\s\w+)\b`)
	reShowNext = regexp.MustCompile(`(?i)\b(when|what).*next.*appointment\b`)
	reConfused = regexp.MustCompile(`(?i)^(what|huh|sorry|pardon|\?+|[a-z])[?!.\s]*$`)
	reAffirm   = regexp.MustCompile(`(?i)^(yes|yeah|yep|sure|please|ok|okay)\b`)
	reWeekday  = regexp.MustCompile(`(?i)\b(mon|tue|wed|thu|fri|sat|sun)[a-z]*\b|\b\d{1,2}(:\d{2})?\s*(am|pm)\b|\btomorrow\b|\btoday\b`)
)

// RegexClassifier is a keyword heuristic that needs no network access.
type RegexClassifier struct{}

func NewRegexClassifier() *RegexClassifier { return &RegexClassifier{} }

func (*RegexClassifier) Name() string { return "regex" }

// Classify always succeeds.  Text that matches nothing is taken as a symptom
// description.
func (*RegexClassifier) Classify(_ context.Context, text string, s pkg.SessionSummary) (pkg.Classification, error) {
	text = strings.TrimSpace(text)
	hit := func(in pkg.Intent, slots pkg.Slots) (pkg.Classification, error) {
		return pkg.Classification{Intent: in, Confidence: 0.9, Slots: slots}, nil
	}

	if text == "" || reConfused.MatchString(text) {
		return hit(pkg.IntentGeneralConversation, pkg.Slots{})
	}
	if m := reName.FindStringSubmatch(text); m != nil {
		return hit(pkg.IntentIdentify, pkg.Slots{PatientName: strings.TrimRight(strings.TrimSpace(m[2]), ".!")})
	}
	if reShowNext.MatchString(text) {
		return hit(pkg.IntentCheckAppointment, pkg.Slots{})
	}
	if reCancel.MatchString(text) {
		return hit(pkg.IntentCancelAppointment, pkg.Slots{})
	}
	if reBook.MatchString(text) {
		return hit(pkg.IntentBookAppointment, bookingSlots(text))
	}
	if reGreeting.MatchString(text) {
		return hit(pkg.IntentGreeting, pkg.Slots{})
	}
	if m := reID.FindStringSubmatch(text); m != nil {
		return hit(pkg.IntentIdentify, pkg.Slots{PatientID: m[1]})
	}

	if s.BookingMode {
		if s.PatientName == "" && looksLikeName(text) {
			return hit(pkg.IntentIdentify, pkg.Slots{PatientName: strings.TrimRight(text, ".!")})
		}
		if reAffirm.MatchString(text) || reWeekday.MatchString(text) {
			slots := bookingSlots(text)
			if slots.TimePreference == "" && reWeekday.MatchString(text) {
				slots.TimePreference = strings.TrimRight(text, ".!")
			}
			return hit(pkg.IntentBookAppointment, slots)
		}
	}

	return pkg.Classification{
		Intent:     pkg.IntentSymptoms,
		Confidence: 0.5,
		Slots:      pkg.Slots{SymptomsDescribed: text},
	}, nil
}

func bookingSlots(text string) pkg.Slots {
	var slots pkg.Slots
	if m := reTime.FindStringSubmatch(text); m != nil {
		when := m[1]
		// the time pattern runs on into a trailing "with ..." clause
		if i := strings.Index(strings.ToLower(when), " with "); i >= 0 {
			when = when[:i]
		}
		slots.TimePreference = strings.TrimSpace(when)
	}
	if m := reDoctor.FindStringSubmatch(text); m != nil {
		slots.DoctorPreference = strings.TrimSpace(m[1])
	}
	if m := reID.FindStringSubmatch(text); m != nil {
		slots.PatientID = m[1]
	}
	return slots
}

// looksLikeName accepts one to three alphabetic words.
func looksLikeName(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		for _, r := range strings.TrimRight(w, ".!,") {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '\'' || r == '-') {
				return false
			}
		}
	}
	return !reAffirm.MatchString(text) && !reWeekday.MatchString(text)
}
