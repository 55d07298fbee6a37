package model

import "time"

// MinObservationLen is the shortest accepted observations text of a clinical note.
const MinObservationLen = 10

type ClinicalNote struct {
	ID             string    `json:"id"`
	AppointmentID  string    `json:"appointment_id"`
	PatientID      string    `json:"patient_id"`
	ProfessionalID string    `json:"professional_id"`
	Observations   string    `json:"observations"`
	Diagnosis      string    `json:"diagnosis,omitempty"`
	Treatment      string    `json:"treatment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type NoteFilter struct {
	PatientID      string
	ProfessionalID string
	Limit          int
}
