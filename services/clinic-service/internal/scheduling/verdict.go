package scheduling

// Reason is the machine readable cause of a rejected booking or status change.
type Reason string

const (
	ReasonUnknownProfessional    Reason = "UNKNOWN_PROFESSIONAL"
	ReasonUnknownPatient         Reason = "UNKNOWN_PATIENT"
	ReasonOutsideWorkingHours    Reason = "OUTSIDE_WORKING_HOURS"
	ReasonSlotAlreadyBooked      Reason = "SLOT_ALREADY_BOOKED"
	ReasonInvalidStateTransition Reason = "INVALID_STATE_TRANSITION"
	ReasonStorageConflict        Reason = "STORAGE_CONFLICT"
)

func (r Reason) Message() string {
	switch r {
	case ReasonUnknownProfessional:
		return "the professional does not exist or is inactive"
	case ReasonUnknownPatient:
		return "the patient does not exist"
	case ReasonOutsideWorkingHours:
		return "the requested time is not a slot in the professional's schedule"
	case ReasonSlotAlreadyBooked:
		return "this professional already has an appointment at this time"
	case ReasonInvalidStateTransition:
		return "the requested status change is not allowed"
	case ReasonStorageConflict:
		return "the slot changed while saving, please check availability and retry"
	}
	return string(r)
}

// Verdict is the outcome of a validation. Rejections are ordinary values, not errors.
type Verdict struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
}

func Accept() Verdict { return Verdict{Accepted: true} }

func Reject(r Reason) Verdict { return Verdict{Reason: r} }
