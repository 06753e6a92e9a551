package core

// prompts.go holds the assistant's fixed phrasing.  Keeping the wording in
// one place makes it easy to tweak without touching the dialogue logic.

import (
	"fmt"
	"strings"

	"medassist/pkg"
)

const (
	// WelcomeMessage opens every session.
	WelcomeMessage = "Hey! How can I help you today?"

	// FarewellMessage is said when the user ends the session.
	FarewellMessage = "Take care! Have a great day!"

	// FatalMessage is said when the patient records cannot be read or
	// written and the session has to stop.
	FatalMessage = "I'm sorry, I can't reach the patient records right now, so I have to stop here. Please try again later."

	askNameForBooking   = "I'd be happy to book an appointment for you! What name should I put it under?"
	reaskNameForBooking = "What name should I put the appointment under?"
	reaskTime           = "What time would work best for you?"
	askNameForCancel    = "What name should I cancel the appointment under?"
	askNameForCheck     = "What name should I check appointments under?"
	unknownID           = "I couldn't find that ID in our system."
	didNotCatchName     = "I didn't catch your name or ID. Could you tell me again?"
	noActiveAppointment = "You don't have an active appointment to cancel."
	noAppointmentOnFile = "No appointment on file."
	noPreviousUtterance = "You haven't said anything else yet."
	unclear             = "Sorry if I was unclear! Let me know what you'd like to do. I can help you book appointments, check your schedule, or note how you're feeling."
)

var greetings = []string{
	"Hey there! How can I help you today?",
	"Hi! What can I do for you?",
	"Hello! How may I assist you?",
}

var anonymousPrompts = []string{
	"I'm here to help with medical appointments and questions. How can I assist you?",
	"I can help you book appointments, check your schedule, or note your symptoms. What would you like to do?",
	"How can I help you today? I can assist with appointments or medical concerns.",
}

func knownPatientPrompts(name string) []string {
	return []string{
		fmt.Sprintf("I'm here to help, %s. Is there anything specific you need assistance with?", name),
		"What else can I help you with today?",
		"Is there anything medical-related I can assist you with?",
	}
}

func greetingFor(name string) string {
	return fmt.Sprintf("Hi %s! What can I do for you?", name)
}

func askTimeFor(name string) string {
	return fmt.Sprintf("Great, %s! What time would work best for you?", name)
}

func gotIt(name string) string {
	if name == "" {
		return "Got it!"
	}
	return fmt.Sprintf("Got it, %s!", name)
}

func bookedMessage(name, when string, doctor *string) string {
	msg := fmt.Sprintf("Perfect! You're booked, %s: %s", name, when)
	if doctor != nil {
		msg += " with " + *doctor
	}
	return msg + "."
}

func alreadyBookedMessage(when string, doctor *string) string {
	msg := "You're already booked " + when
	if doctor != nil {
		msg += " with " + *doctor
	}
	return msg + ". Is there anything else you need?"
}

func canceledMessage(a pkg.Appointment) string {
	return fmt.Sprintf("Done, I canceled your appointment %s.", a.When)
}

func nextAppointmentMessage(when string) string {
	return fmt.Sprintf("You've got one %s.", when)
}

func symptomReply(terms []string) string {
	if len(terms) == 0 {
		return "I understand you're not feeling well. Would you like me to book you an appointment to see a doctor?"
	}
	return fmt.Sprintf("I'm sorry to hear you're experiencing %s. Would you like me to book you an appointment to see a doctor?", strings.Join(terms, ", "))
}

func reminderMessage(name, when string) string {
	return fmt.Sprintf("You're all set, %s! Your next appointment is %s. Is there anything else you need?", name, when)
}

func echoMessage(prev string) string {
	return fmt.Sprintf("You said: %q", prev)
}

func ambiguousMessage(candidates []pkg.Patient) string {
	names := make([]string, 0, len(candidates))
	for _, p := range candidates {
		names = append(names, fmt.Sprintf("%s (ID %s)", p.DisplayName(), p.ID))
	}
	return fmt.Sprintf("I found more than one patient matching that: %s. Could you tell me your full name or patient ID?", strings.Join(names, ", "))
}
