package intent

import (
	"context"
	"testing"

	"medassist/pkg"
)

func TestRegexClassifier(t *testing.T) {
	booking := pkg.SessionSummary{BookingMode: true}
	tests := []struct {
		name    string
		text    string
		summary pkg.SessionSummary
		intent  pkg.Intent
		slots   pkg.Slots
	}{
		{name: "greeting", text: "hey there", intent: pkg.IntentGreeting},
		{name: "name", text: "Hi, my name is Drake.", intent: pkg.IntentIdentify, slots: pkg.Slots{PatientName: "Drake"}},
		{name: "id", text: "it's #12", intent: pkg.IntentIdentify, slots: pkg.Slots{PatientID: "12"}},
		{name: "next appointment", text: "when is my next appointment", intent: pkg.IntentCheckAppointment},
		{name: "cancel", text: "please cancel my appointment", intent: pkg.IntentCancelAppointment},
		{
			name:   "book with time and doctor",
			text:   "book an appointment on Friday 10am with Dr Lee",
			intent: pkg.IntentBookAppointment,
			slots:  pkg.Slots{TimePreference: "Friday 10am", DoctorPreference: "Dr Lee"},
		},
		{name: "book bare", text: "I need an appointment", intent: pkg.IntentBookAppointment},
		{name: "confused", text: "huh?", intent: pkg.IntentGeneralConversation},
		{name: "single letter", text: "k", intent: pkg.IntentGeneralConversation},
		{name: "name while booking", text: "Drake", summary: booking, intent: pkg.IntentIdentify, slots: pkg.Slots{PatientName: "Drake"}},
		{
			name:    "time while booking",
			text:    "Friday 10am",
			summary: pkg.SessionSummary{BookingMode: true, PatientName: "Drake"},
			intent:  pkg.IntentBookAppointment,
			slots:   pkg.Slots{TimePreference: "Friday 10am"},
		},
		{name: "yes while booking", text: "yes please", summary: booking, intent: pkg.IntentBookAppointment},
		{
			name:   "symptoms fallback",
			text:   "I have a pounding headache",
			intent: pkg.IntentSymptoms,
			slots:  pkg.Slots{SymptomsDescribed: "I have a pounding headache"},
		},
	}
	c := NewRegexClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text, tt.summary)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.Intent != tt.intent {
				t.Errorf("intent = %s, want %s", got.Intent, tt.intent)
			}
			if got.Slots != tt.slots {
				t.Errorf("slots = %+v, want %+v", got.Slots, tt.slots)
			}
		})
	}
}
