package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

type ScheduleSource interface {
	WeeklyRules(ctx context.Context, professionalID string) ([]scheduling.Rule, error)
}

// LedgerSource returns the live appointments of a professional in [from, to).
type LedgerSource interface {
	AppointmentsBetween(ctx context.Context, professionalID string, from, to time.Time) ([]scheduling.Appointment, error)
}

type Directory interface {
	ProfessionalActive(ctx context.Context, professionalID string) (bool, error)
	PatientExists(ctx context.Context, patientID string) (bool, error)
}

type AppointmentStore interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
	List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	Create(ctx context.Context, a model.Appointment, idempotencyKey string, evt outbox.Event) (model.Appointment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (model.Appointment, error)
	Update(ctx context.Context, id string, mutate func(a *model.Appointment) (outbox.Event, error)) (model.Appointment, error)
}

type ScheduleWriter interface {
	ReplaceSchedule(ctx context.Context, professionalID string, rules []scheduling.Rule, evt outbox.Event) error
}

// Invalidator drops cached schedule data of a professional.
type Invalidator interface {
	Invalidate(professionalID string)
}

// Actor is who performs a write. Restricted actors (professionals) may only touch
// appointments of their own ProfessionalID.
type Actor struct {
	ProfessionalID string
	Restricted     bool
}

func (a Actor) allowed(professionalID string) bool {
	return !a.Restricted || (a.ProfessionalID != "" && a.ProfessionalID == professionalID)
}

// Scope returns the professional filter the actor may list with. Restricted
// actors are pinned to their own id and refused when they carry none.
func (a Actor) Scope(professionalID string) (string, error) {
	if !a.Restricted {
		return professionalID, nil
	}
	if a.ProfessionalID == "" || (professionalID != "" && professionalID != a.ProfessionalID) {
		return "", model.ErrForbidden
	}
	return a.ProfessionalID, nil
}
