package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

const appointmentColumns = `id::text, patient_id::text, professional_id::text, scheduled_at, status,
	reason, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.ScheduledAt, &status,
		&a.Reason, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	a.Status = scheduling.Status(status)
	return a, err
}

// AppointmentsBetween returns the professional's live appointments in [from, to).
func (r *AppointmentRepository) AppointmentsBetween(ctx context.Context, professionalID string, from, to time.Time) ([]scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND status <> 'CANCELLED'
			AND scheduled_at >= $2
			AND scheduled_at < $3
		ORDER BY scheduled_at
	`, professionalID, from, to)
	if err != nil {
		return nil, classify(err, "list ledger")
	}
	defer rows.Close()

	var out []scheduling.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a.Appointment)
	}
	return out, rows.Err()
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	return a, classify(err, "get appointment")
}

func (r *AppointmentRepository) List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var w where
	if f.ProfessionalID != "" {
		w.add("professional_id = $%d", f.ProfessionalID)
	}
	if f.PatientID != "" {
		w.add("patient_id = $%d", f.PatientID)
	}
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		w.add("scheduled_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		w.add("scheduled_at < $%d", f.To)
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments` + w.String() + ` ORDER BY scheduled_at` + w.limit(f.Limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, classify(err, "list appointments")
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a in one transaction with its outbox event and, when key is set,
// the idempotency record. The live-slot index yields model.ErrSlotTaken and a
// reused key model.ErrDuplicate.
func (r *AppointmentRepository) Create(ctx context.Context, a model.Appointment, key string, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, professional_id, scheduled_at, status, reason, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProfessionalID, a.ScheduledAt, string(a.Status), a.Reason, a.Notes))
	if err != nil {
		return model.Appointment{}, classify(err, "insert appointment")
	}
	if key != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_idempotency_keys (idempotency_key, appointment_id) VALUES ($1, $2)
		`, key, created.ID); err != nil {
			return model.Appointment{}, classify(err, "record idempotency key")
		}
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, classify(err, "commit appointment")
	}
	return created, nil
}

func (r *AppointmentRepository) FindByIdempotencyKey(ctx context.Context, key string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+prefixed("a", appointmentColumns)+`
		FROM booking_idempotency_keys k
		JOIN appointments a ON a.id = k.appointment_id
		WHERE k.idempotency_key = $1
	`, key))
	return a, classify(err, "find idempotent booking")
}

// Update locks the row and lets mutate edit it in place. mutate returns the event
// describing the change; an error from it aborts the update unchanged. Schedule,
// status and notes are then persisted together with the event.
func (r *AppointmentRepository) Update(ctx context.Context, id string, mutate func(a *model.Appointment) (outbox.Event, error)) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return model.Appointment{}, classify(err, "lock appointment")
	}
	evt, err := mutate(&a)
	if err != nil {
		return model.Appointment{}, err
	}
	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_at = $2, status = $3, notes = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, a.ScheduledAt, string(a.Status), a.Notes))
	if err != nil {
		return model.Appointment{}, classify(err, "update appointment")
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, classify(err, "commit appointment")
	}
	return updated, nil
}
