package core

import (
	"context"

	"medassist/pkg"
)

// handleBook drives the booking slot-filling flow.  Outside booking mode it
// either commits straight away or enters booking mode and asks for what is
// missing.  Inside booking mode new slots are merged and completeness is
// re-checked.
func (e *Engine) handleBook(ctx context.Context, dc *DialogueContext, text string, cl pkg.Classification) (string, error) {
	when := strPtr(cl.Slots.TimePreference)
	doctor := strPtr(cl.Slots.DoctorPreference)

	if dc.PatientID == nil && (cl.Slots.PatientID != "" || cl.Slots.PatientName != "") {
		reply, ok, err := e.identifyFromSlots(ctx, dc, cl.Slots)
		if err != nil {
			return "", err
		}
		if !ok {
			dc.Pending = mergePending(dc.Pending, when, doctor)
			return reply, nil
		}
	}

	if dc.Pending.Mode == ModeBooking {
		dc.Pending = mergePending(dc.Pending, when, doctor)
		return e.advanceBooking(ctx, dc)
	}

	if dc.PatientID == nil {
		dc.Pending = PendingBooking{Mode: ModeBooking, When: when, Doctor: doctor}
		return askNameForBooking, nil
	}
	if when == nil {
		dc.Pending = PendingBooking{Mode: ModeBooking, Doctor: doctor}
		return askTimeFor(dc.PatientName), nil
	}
	return e.commit(ctx, dc, *when, doctor)
}

// advanceBooking re-checks a booking in progress and commits it once both the
// patient and the time are known.
func (e *Engine) advanceBooking(ctx context.Context, dc *DialogueContext) (string, error) {
	if dc.PatientID == nil {
		return reaskNameForBooking, nil
	}
	if dc.Pending.When == nil {
		return reaskTime, nil
	}
	return e.commit(ctx, dc, *dc.Pending.When, dc.Pending.Doctor)
}

// commit appends exactly one booked appointment and resets the pending
// booking.  Repeating the request that was just committed books nothing.
func (e *Engine) commit(ctx context.Context, dc *DialogueContext, when string, doctor *string) (string, error) {
	p, ok, err := e.currentPatient(ctx, dc)
	if err != nil {
		return "", err
	}
	if !ok {
		dc.Pending = mergePending(dc.Pending, strPtr(when), doctor)
		dc.Pending.Mode = ModeBooking
		return reaskNameForBooking, nil
	}

	key := commitKey{patientID: p.ID, when: when, doctor: deref(doctor)}
	if dc.lastCommit != nil && *dc.lastCommit == key && latestIsBooked(p, when, doctor) {
		dc.resetPending()
		return alreadyBookedMessage(when, doctor), nil
	}

	p.Book(when, doctor)
	if err := e.repo.Upsert(ctx, p); err != nil {
		return "", err
	}
	dc.resetPending()
	dc.lastCommit = &key
	e.metrics.BookingCommitted()
	e.log.Info().
		Str("session_id", dc.SessionID).
		Str("patient_id", p.ID).
		Str("when", when).
		Str("doctor", deref(doctor)).
		Msg("appointment booked")
	return bookedMessage(dc.PatientName, when, doctor), nil
}

// mergePending stores new slot values without clearing earlier ones.
func mergePending(p PendingBooking, when, doctor *string) PendingBooking {
	p.Mode = ModeBooking
	if when != nil {
		p.When = when
	}
	if doctor != nil {
		p.Doctor = doctor
	}
	return p
}

func latestIsBooked(p pkg.Patient, when string, doctor *string) bool {
	if len(p.Appointments) == 0 {
		return false
	}
	last := p.Appointments[len(p.Appointments)-1]
	return last.Status == pkg.StatusBooked && last.When == when && deref(last.Doctor) == deref(doctor)
}
