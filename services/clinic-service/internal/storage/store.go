package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
)

const (
	slotConstraint        = "appointments_professional_slot_uq"
	idempotencyConstraint = "booking_idempotency_keys_pkey"
	dniConstraint         = "patients_dni_key"
	licenseConstraint     = "professionals_license_number_key"
	noteConstraint        = "clinical_notes_appointment_key"

	defaultListLimit = 100
	maxListLimit     = 500
)

// Store groups the repositories of the clinic database.
type Store struct {
	Appointments  *AppointmentRepository
	Patients      *PatientRepository
	Professionals *ProfessionalRepository
	Notes         *NoteRepository
}

func NewStore(pool *db.Pool, events *outbox.Repository) *Store {
	return &Store{
		Appointments:  &AppointmentRepository{pool: pool, outbox: events},
		Patients:      &PatientRepository{pool: pool},
		Professionals: &ProfessionalRepository{pool: pool, outbox: events},
		Notes:         &NoteRepository{pool: pool},
	}
}

func (s *Store) ProfessionalActive(ctx context.Context, id string) (bool, error) {
	return s.Professionals.IsActive(ctx, id)
}

func (s *Store) PatientExists(ctx context.Context, id string) (bool, error) {
	return s.Patients.Exists(ctx, id)
}

// classify maps driver errors onto the model sentinels.
func classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	case db.IsUniqueViolation(err, slotConstraint):
		return fmt.Errorf("%s: %w", what, model.ErrSlotTaken)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, model.ErrDuplicate)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%s references a missing record: %w", what, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// where accumulates AND-ed predicates with positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// limit appends n as the next argument and returns its placeholder.
func (w *where) limit(n int) string {
	w.args = append(w.args, clampLimit(n))
	return fmt.Sprintf(" LIMIT $%d", len(w.args))
}

// prefixed qualifies every column of a select list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
