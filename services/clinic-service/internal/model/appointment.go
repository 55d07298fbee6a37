package model

import (
	"time"

	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

type Appointment struct {
	scheduling.Appointment
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AppointmentFilter struct {
	ProfessionalID string
	PatientID      string
	Status         scheduling.Status
	From           time.Time
	To             time.Time
	Limit          int
}
