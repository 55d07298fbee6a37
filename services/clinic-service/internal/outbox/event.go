package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types; each one is published to the Kafka topic of the same name.
const (
	TypeAppointmentBooked        = "clinic.appointment.booked.v1"
	TypeAppointmentRescheduled   = "clinic.appointment.rescheduled.v1"
	TypeAppointmentStatusChanged = "clinic.appointment.status_changed.v1"
	TypeScheduleReplaced         = "clinic.professional.schedule_replaced.v1"
)

const (
	AggregateAppointment  = "appointment"
	AggregateProfessional = "professional"
)

type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload and assigns a fresh event id.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

type AppointmentPayload struct {
	AppointmentID  string    `json:"appointment_id"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Status         string    `json:"status"`
	PreviousAt     time.Time `json:"previous_scheduled_at,omitzero"`
	PreviousStatus string    `json:"previous_status,omitempty"`
}

type ScheduleReplacedPayload struct {
	ProfessionalID string `json:"professional_id"`
	Rules          int    `json:"rules"`
}
