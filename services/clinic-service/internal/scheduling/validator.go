package scheduling

import "time"

// Request is a proposed booking. ExcludeAppointmentID names the appointment being
// moved when rescheduling so that it does not collide with itself.
type Request struct {
	ProfessionalID       string    `json:"professional_id"`
	PatientID            string    `json:"patient_id"`
	At                   time.Time `json:"at"`
	ExcludeAppointmentID string    `json:"exclude_appointment_id,omitempty"`
}

// Facts are the directory lookups the validator cannot answer from the template
// or ledger.
type Facts struct {
	ProfessionalActive bool
	PatientExists      bool
}

type BookingValidator struct {
	Template Template
	Ledger   Ledger
	Location *time.Location
}

// Validate applies the booking checks in order and returns the first failure.
func (v BookingValidator) Validate(req Request, facts Facts) Verdict {
	if !facts.ProfessionalActive {
		return Reject(ReasonUnknownProfessional)
	}
	if !facts.PatientExists {
		return Reject(ReasonUnknownPatient)
	}
	if !v.OnGrid(req.ProfessionalID, req.At) {
		return Reject(ReasonOutsideWorkingHours)
	}
	if v.Ledger.IsOccupied(req.ProfessionalID, req.At, req.ExcludeAppointmentID) {
		return Reject(ReasonSlotAlreadyBooked)
	}
	return Accept()
}

// OnGrid reports whether at is exactly the start of a whole slot of one of the
// professional's blocks for that local weekday.
func (v BookingValidator) OnGrid(professionalID string, at time.Time) bool {
	loc := v.Location
	if loc == nil {
		loc = time.Local
	}
	d, tod, whole := ClockOf(at, loc)
	if !whole {
		return false
	}
	// Ambiguous wall times (DST fall back) only match the instant the generator emits.
	if !d.At(tod, loc).Equal(at) {
		return false
	}
	for _, r := range v.Template.RulesFor(professionalID, d.Weekday()) {
		if r.Aligned(tod) {
			return true
		}
	}
	return false
}
